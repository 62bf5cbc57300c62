// Command productsearch builds and queries a product index from the command
// line without running any services.
//
// Usage:
//
//	productsearch build --corpus data/products.jsonl --out data/index
//	productsearch query "black shirt" --type all --limit 5
//	productsearch demo
package main

import (
	"os"

	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
