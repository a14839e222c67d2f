package script

// TestScript selects a canned script that needs no filesystem access.
type TestScript uint8

const (
	TestScriptPrintHello   TestScript = 1
	TestScriptDisplayHello TestScript = 2
)

// Canned scripts are stored already escaped.
const (
	printHelloScript   = `print('Hello World')\nprint('Hello Astro Pi')`
	displayHelloScript = `from sense_hat import SenseHat\nsense = SenseHat()\nsense.show_message('Hello world')\n`
)

// Canned returns the text and display name of a test script.
// Any selector other than TestScriptPrintHello yields the display script.
func Canned(sel TestScript) (text, name string) {
	if sel == TestScriptPrintHello {
		return printHelloScript, "Print Hello World test script"
	}
	return displayHelloScript, "Display Hello World test script"
}
