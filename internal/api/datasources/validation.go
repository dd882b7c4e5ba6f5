package datasources

import "fmt"

func errRequired(field string) error {
	return fmt.Errorf("%s is required", field)
}

func errPort(port int) error {
	return fmt.Errorf("port %d out of range (1-65535)", port)
}
