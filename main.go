// ./main.go
package main

import (
	"github.com/xkilldash9x/uiprobe/cmd"
)

func main() {
	cmd.Execute()
}
