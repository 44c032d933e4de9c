package main

import "refpay/internal/app/server"

func main() {
	server.Run()
}
