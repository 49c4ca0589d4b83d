// The main package for the linkrank executable.
package main

import (
	"github.com/JakeFAU/linkrank/cmd"
)

func main() {
	cmd.Execute()
}
