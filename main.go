package main

import "github.com/vibast-solutions/ms-go-payment-links/cmd"

func main() {
	cmd.Execute()
}
