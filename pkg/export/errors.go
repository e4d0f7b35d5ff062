package export

import "fmt"

func errNoSheets(kind string) error {
	return fmt.Errorf("%s requires at least one sheet", kind)
}

func errNoHeaders(kind, sheet string) error {
	return fmt.Errorf("%s sheet %q requires at least one header", kind, sheet)
}
