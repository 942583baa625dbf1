// Command uartsim drives the uartx driver against a simulated peripheral from
// an interactive shell. The wire can be carried to a remote peer over MQTT or
// a websocket.
package main

import (
	"flag"

	"github.com/golang/glog"
)

func main() {
	SetupFlags()
	flag.Parse()
	defer glog.Flush()
	s, err := NewShell(NewConfig())
	if err != nil {
		glog.Exitln(err)
	}
	s.Run(flag.Args()...)
}
