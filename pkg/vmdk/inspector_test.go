/**
 * SPDX-License-Identifier: BSD-2-Clause
 */

package vmdk

import "testing"

func TestDirblks(t *testing.T) {
	cases := []struct {
		name           string
		capacitySectors uint64
		want           int64
	}{
		{"one grain table", NumGTEsPerGT * GrainSectors, 2},
		{"several grain tables", 10 * NumGTEsPerGT * GrainSectors, 2},
		{"exactly 128 tables (entryBytes hits sector boundary)", 128 * NumGTEsPerGT * GrainSectors, 2},
	}

	for _, c := range cases {
		h := &Header{Capacity: c.capacitySectors, GrainSize: GrainSectors, NumGTEsPerGT: NumGTEsPerGT}
		if got := dirblks(h); got != c.want {
			t.Errorf("%s: dirblks() = %d, want %d", c.name, got, c.want)
		}
	}
}

func TestDumpTableGrainTableSectors(t *testing.T) {
	h := &Header{NumGTEsPerGT: NumGTEsPerGT}
	if got := sectorsForTable(TableKindGrainTable, h); got != GTSectors {
		t.Fatalf("sectorsForTable(GrainTable) = %d, want %d", got, GTSectors)
	}
}

func TestDumpTableRoundTrip(t *testing.T) {
	entries := make([]uint32, NumGTEsPerGT)
	entries[3] = 12345
	entries[100] = 99

	src := &memFile{}
	if _, err := src.Write(encodeEntries(entries)); err != nil {
		t.Fatal(err)
	}

	h := &Header{NumGTEsPerGT: NumGTEsPerGT}
	got, err := DumpTable(src, 0, TableKindGrainTable, h)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(entries) {
		t.Fatalf("got %d entries, want %d", len(got), len(entries))
	}
	if got[3] != 12345 || got[100] != 99 {
		t.Fatalf("entries not round-tripped correctly: %v", got[:110])
	}
}
