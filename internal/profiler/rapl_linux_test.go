package profiler

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

type raplZoneFixture struct {
	dir, name   string
	energy, max uint64
}

func writeRaplZone(t *testing.T, root string, z raplZoneFixture) string {
	t.Helper()
	dir := filepath.Join(root, "class", "powercap", z.dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	files := map[string]string{
		"name":                z.name,
		"energy_uj":           strconv.FormatUint(z.energy, 10),
		"max_energy_range_uj": strconv.FormatUint(z.max, 10),
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body+"\n"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return filepath.Join(dir, "energy_uj")
}

func setEnergy(t *testing.T, path string, uj uint64) {
	t.Helper()
	if err := os.WriteFile(path, []byte(strconv.FormatUint(uj, 10)+"\n"), 0o644); err != nil {
		t.Fatalf("write energy: %v", err)
	}
}

func TestRAPLCounter_PackagesWrapIndependently(t *testing.T) {
	root := t.TempDir()
	const rangeUJ = 262_143_328_850
	pkg0 := writeRaplZone(t, root, raplZoneFixture{dir: "intel-rapl:0", name: "package-0", energy: rangeUJ - 5_000_000, max: rangeUJ})
	pkg1 := writeRaplZone(t, root, raplZoneFixture{dir: "intel-rapl:1", name: "package-1", energy: 1_000_000_000, max: rangeUJ})
	writeRaplZone(t, root, raplZoneFixture{dir: "intel-rapl:0:0", name: "core", energy: 42, max: rangeUJ})

	counter, err := NewRAPLCounter(root)
	if err != nil {
		t.Fatalf("NewRAPLCounter: %v", err)
	}
	if got := len(counter.Max()); got != 2 {
		t.Fatalf("expected 2 package zones, got %d", got)
	}

	start, err := counter.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	setEnergy(t, pkg0, 10_000_000)
	setEnergy(t, pkg1, 1_100_000_000)
	end, err := counter.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	got := energyUsed(start, end, counter.Max())
	if want := uint64(115_000_000); got != want {
		t.Errorf("energyUsed = %d uJ, want %d", got, want)
	}
}

func TestRAPLCounter_NoPackageZones(t *testing.T) {
	root := t.TempDir()
	writeRaplZone(t, root, raplZoneFixture{dir: "intel-rapl:0:0", name: "core", energy: 1, max: 100})

	if _, err := NewRAPLCounter(root); err == nil {
		t.Fatal("expected an error without package zones")
	}
}
