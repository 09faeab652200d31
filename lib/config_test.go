package lib

import (
	"io/ioutil"
	"path"
	"testing"
)

func writeConfig(t *testing.T, text string) string {
	t.Helper()
	fname := path.Join(t.TempDir(), "treeforce.config")
	if err := ioutil.WriteFile(fname, []byte(text), 0644); err != nil {
		t.Fatalf("Could not write test config: %s.", err.Error())
	}
	return fname
}

func TestReadConfig(t *testing.T) {
	tests := []struct {
		text  string
		valid bool

		ranks, maxHops, threads, generation int
		compress                            bool
	}{
		{`[exchange]
Ranks = 4`, true, 4, 3, -1, 0, false},
		{`[exchange]
Ranks = 8
MaxHops = 2
Compress = true
CompressLevel = 3

[run]
Threads = 2
Generation = 5`, true, 8, 2, 2, 5, true},
		{`[exchange]
Ranks = 1`, true, 1, 0, -1, 0, false},

		{``, false, 0, 0, 0, 0, false},
		{`[exchange]
Ranks = 0`, false, 0, 0, 0, 0, false},
		{`[exchange]
Ranks = 4
MaxHops = -2`, false, 0, 0, 0, 0, false},
		{`[exchange]
Ranks = 4
CompressLevel = 100`, false, 0, 0, 0, 0, false},
		{`[exchange]
Ranks = 4

[run]
Generation = -1`, false, 0, 0, 0, 0, false},
		{`[exchange]
Ranks = 4

[run]
Threads = -5`, false, 0, 0, 0, 0, false},
	}

	for i := range tests {
		cfg, err := ReadConfig(writeConfig(t, tests[i].text))

		if tests[i].valid && err != nil {
			t.Errorf("%d) Expected the config to parse, but got error "+
				"'%s'.", i, err.Error())
			continue
		} else if !tests[i].valid {
			if err == nil {
				t.Errorf("%d) Expected the config to fail, but it parsed.", i)
			}
			continue
		}

		if cfg.Exchange.Ranks != tests[i].ranks {
			t.Errorf("%d) Expected Ranks = %d, got %d.",
				i, tests[i].ranks, cfg.Exchange.Ranks)
		}
		if cfg.Exchange.MaxHops != tests[i].maxHops {
			t.Errorf("%d) Expected MaxHops = %d, got %d.",
				i, tests[i].maxHops, cfg.Exchange.MaxHops)
		}
		if cfg.Exchange.Compress != tests[i].compress {
			t.Errorf("%d) Expected Compress = %v, got %v.",
				i, tests[i].compress, cfg.Exchange.Compress)
		}
		if cfg.Run.Threads != tests[i].threads {
			t.Errorf("%d) Expected Threads = %d, got %d.",
				i, tests[i].threads, cfg.Run.Threads)
		}
		if cfg.Run.Generation != tests[i].generation {
			t.Errorf("%d) Expected Generation = %d, got %d.",
				i, tests[i].generation, cfg.Run.Generation)
		}
	}
}
