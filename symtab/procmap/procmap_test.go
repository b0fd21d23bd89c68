package procmap

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseExecutableRanges_DropsNonExecutableSameFileRange(t *testing.T) {
	data := "55a000-55b000 r-xp 0 08:01 100 /bin/app\n" +
		"55b000-55c000 rw-p 0 08:01 100 /bin/app\n"
	ranges, err := ParseExecutableRanges(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, ranges, 1)
	require.Equal(t, uint64(0x55a000), ranges[0].StartAddr)
	require.Equal(t, uint64(0x55b000), ranges[0].EndAddr)
	require.Equal(t, "/bin/app", ranges[0].Pathname)
}

func TestParseExecutableRanges_SkipsNonExecutable(t *testing.T) {
	data := "7f0000-7f1000 rw-p 0 00:00 0 \n" +
		"7f1000-7f2000 r-xp 0 08:01 200 /lib/libc.so\n"
	ranges, err := ParseExecutableRanges(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, ranges, 1)
	require.Equal(t, "/lib/libc.so", ranges[0].Pathname)
}

func TestParseAllRanges_Invariant_SortedDisjoint(t *testing.T) {
	data := "400000-401000 r-xp 0 08:01 1 /bin/app\n" +
		"600000-601000 rw-p 0 08:01 1 /bin/app\n" +
		"7f0000-7f1000 r-xp 0 08:01 2 /lib/libfoo.so\n"
	ranges, err := ParseAllRanges(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, ranges, 3)
	for i := 1; i < len(ranges); i++ {
		require.True(t, ranges[i].StartAddr >= ranges[i-1].EndAddr, "ranges must be sorted and disjoint")
	}
	for _, r := range ranges {
		require.True(t, r.StartAddr < r.EndAddr)
	}
}

func TestParsePermissions(t *testing.T) {
	p, err := parsePermissions("r-xp")
	require.NoError(t, err)
	require.True(t, p.Read)
	require.False(t, p.Write)
	require.True(t, p.Execute)
	require.True(t, p.Private)
	require.False(t, p.Shared)
}

func TestParseDevice(t *testing.T) {
	dev, err := parseDevice("08:01")
	require.NoError(t, err)
	require.Equal(t, mkdev(0x08, 0x01), dev)
}

func TestParseLine_MalformedRangeRejected(t *testing.T) {
	_, _, err := parseLine("bogus r-xp 0 08:01 1 /bin/app", true)
	require.Error(t, err)
}

func TestProcMap_Key(t *testing.T) {
	m := ProcMap{Dev: 1, Inode: 2, Pathname: "/bin/app"}
	require.Equal(t, File{Dev: 1, Inode: 2, Path: "/bin/app"}, m.Key())
}
