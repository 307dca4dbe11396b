package main

import (
	"flag"
	"testing"

	"fleetd/internal/config"
)

// callMerge runs applyFileConfig against fresh flag-default values and
// returns the merged results relevant to the test.
type mergeVars struct {
	addr, workerBin, workerArgs  string
	basePort, voiceOffset        int
	totalCores, reservedCores    int
	pinning                      bool
	maxSlots, drainSec           int
	spawnSec, pollSec            int
	stopPolicy, dataDir, natsURL string
}

func callMerge(c config.Config, v *mergeVars) {
	applyFileConfig(c, &v.addr, &v.workerBin, &v.workerArgs,
		&v.basePort, &v.voiceOffset, &v.totalCores, &v.reservedCores, &v.pinning,
		&v.maxSlots, &v.drainSec, &v.spawnSec, &v.pollSec,
		&v.stopPolicy, &v.dataDir, &v.natsURL)
}

func TestApplyFileConfigKeepsPinningDefault(t *testing.T) {
	v := &mergeVars{addr: ":8090", pinning: true, stopPolicy: "oldest"}
	callMerge(config.Config{Addr: ":9999"}, v)
	if v.addr != ":9999" {
		t.Fatalf("addr = %q, want file value :9999", v.addr)
	}
	// A file that never mentions pinning must not flip the flag default.
	if !v.pinning {
		t.Fatalf("pinning default true was reset by a config file that never mentioned it")
	}
}

func TestApplyFileConfigPinningExplicitFalse(t *testing.T) {
	off := false
	v := &mergeVars{pinning: true}
	callMerge(config.Config{PinningEnabled: &off}, v)
	if v.pinning {
		t.Fatalf("explicit pinning_enabled=false in the file was ignored")
	}
}

func TestApplyFileConfigSkipsExplicitFlags(t *testing.T) {
	if flag.Lookup("stop-policy") == nil {
		flag.String("stop-policy", "oldest", "")
	}
	if err := flag.Set("stop-policy", "youngest"); err != nil {
		t.Fatalf("set flag: %v", err)
	}
	v := &mergeVars{stopPolicy: "youngest", drainSec: 30}
	callMerge(config.Config{StopPolicy: "oldest", DrainTimeoutSec: 45}, v)
	if v.stopPolicy != "youngest" {
		t.Fatalf("explicitly set flag lost to the file: %q", v.stopPolicy)
	}
	if v.drainSec != 45 {
		t.Fatalf("drain-timeout-sec = %d, want file value 45", v.drainSec)
	}
}
