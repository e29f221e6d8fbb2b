package main

import (
	"fmt"
	"os"

	"github.com/duduar89/2.1-Procesamiento-OCR-Facturas-sub001/cmd/purchasectl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
