package constraint

import (
	"path"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

const (
	// DefaultPowerSupplyDir is where Linux exposes power supplies.
	DefaultPowerSupplyDir = "/sys/class/power_supply"
	// DefaultLowPercent matches the usual "battery low" broadcast threshold.
	DefaultLowPercent = 15
)

// SysfsBattery reads battery state from the power_supply class. Hosts without
// a battery are never low.
type SysfsBattery struct {
	fs         afero.Fs
	dir        string
	lowPercent int
}

func NewSysfsBattery(fs afero.Fs) *SysfsBattery {
	return &SysfsBattery{fs: fs, dir: DefaultPowerSupplyDir, lowPercent: DefaultLowPercent}
}

func (b *SysfsBattery) Low() (bool, error) {
	entries, err := afero.ReadDir(b.fs, b.dir)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		dir := path.Join(b.dir, e.Name())
		if b.read(dir, "type") != "Battery" {
			continue
		}
		switch b.read(dir, "status") {
		case "Charging", "Full":
			return false, nil
		}
		capacity, err := strconv.Atoi(b.read(dir, "capacity"))
		if err != nil {
			continue
		}
		if capacity <= b.lowPercent {
			return true, nil
		}
	}
	return false, nil
}

func (b *SysfsBattery) read(dir, name string) string {
	data, err := afero.ReadFile(b.fs, path.Join(dir, name))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
