// scsctl is an interactive console for SCSCL serial bus servos: jog
// positions, run wheel mode, read telemetry, rename devices.
package main

import (
	"github.com/golang/glog"
	"github.com/spf13/pflag"

	"github.com/hipsterbrown/scservo/scs"
)

func main() {
	defer glog.Flush()

	cfg, err := LoadConfig()
	if err != nil {
		glog.Exitf("config: %v", err)
	}

	bus, err := scs.NewBus(scs.BusConfig{
		Port:     cfg.Port,
		BaudRate: cfg.BaudRate,
		Timeout:  cfg.Timeout,
	})
	if err != nil {
		glog.Exitf("open bus: %v", err)
	}
	defer bus.Close()

	glog.Infof("opened %s at %d baud", cfg.Port, cfg.BaudRate)

	NewShell(bus, cfg.Timeout).Run(pflag.Args()...)
}
