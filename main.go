package main

import (
	"booking_service/startup"
	cfg "booking_service/startup/config"
)

func main() {
	config := cfg.NewConfig()
	server := startup.NewServer(config)
	server.Start()
}
