//go:build js && wasm

package main

import (
	"fmt"
	"strings"
	"syscall/js"

	"github.com/cottand/occur/scenario"
)

// checkScenario runs the scenario document given as first argument
// and returns its report, or the error that stopped it
func checkScenario(_ js.Value, args []js.Value) (ret any) {
	defer func() {
		if r := recover(); r != nil {
			ret = "checker panicked: " + fmt.Sprint(r)
		}
	}()

	s, err := scenario.Load(strings.NewReader(args[0].String()))
	if err != nil {
		return fmt.Sprintf("could not load scenario:\n%s", err)
	}
	result, err := s.Run()
	if err != nil {
		return fmt.Sprintf("could not run scenario:\n%s", err)
	}
	return result.Report()
}

func main() {
	js.Global().Set("CheckScenario", js.FuncOf(checkScenario))

	// wait indefinitely so that Go does not terminate execution
	// and the function remains available
	<-make(chan struct{})
}
