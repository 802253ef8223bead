package main

import (
	"flag"

	"kyri56xcaesar/tasktracker/internal/api"
)

func main() {
	confPath := flag.String("config", "configs/tasktracker.env", "path to the .env configuration file")
	flag.Parse()

	api.InitAndServe(*confPath)
}
