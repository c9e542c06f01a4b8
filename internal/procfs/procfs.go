// Package procfs reads process information from /proc. It is the
// Process Inspector layer: every other supervision package learns
// what's actually running through these functions instead of
// shelling out to "ps".
package procfs

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Cmdline is the decoded contents of /proc/<pid>/cmdline.
type Cmdline struct {
	// Full is Executable followed by Args, space-joined, the form
	// matched against a program's proctitle_re.
	Full       string
	Executable string
	Args       []string
}

// GetCmdline reads /proc/<pid>/cmdline, splits on NUL, and decodes it
// as UTF-8. Returns an error if the file is missing, unreadable, or
// empty (a zombie or kernel thread has an empty cmdline).
func GetCmdline(pid int) (Cmdline, error) {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/cmdline", pid))
	if err != nil {
		return Cmdline{}, fmt.Errorf("reading cmdline for pid %d: %w", pid, err)
	}
	parts := bytes.Split(data, []byte{0})
	// A trailing NUL produces one empty trailing element; drop it.
	if len(parts) > 0 && len(parts[len(parts)-1]) == 0 {
		parts = parts[:len(parts)-1]
	}
	if len(parts) == 0 {
		return Cmdline{}, fmt.Errorf("pid %d has an empty cmdline", pid)
	}

	tokens := make([]string, len(parts))
	for i, p := range parts {
		tokens[i] = string(p)
	}

	return Cmdline{
		Full:       strings.Join(tokens, " "),
		Executable: tokens[0],
		Args:       tokens[1:],
	}, nil
}

// Stat is the subset of /proc/<pid>/stat fields the supervisor needs.
type Stat struct {
	Pid              int
	Comm             string
	State            byte
	Ppid             int
	StartTimeJiffies uint64
}

// GetStat reads and parses /proc/<pid>/stat. The comm field is
// delimited by parentheses and may itself contain spaces or
// parentheses, so the command name is recovered by locating the last
// ')' in the line rather than splitting naively on spaces.
func GetStat(pid int) (Stat, error) {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return Stat{}, fmt.Errorf("reading stat for pid %d: %w", pid, err)
	}
	line := string(data)

	openParen := strings.IndexByte(line, '(')
	closeParen := strings.LastIndexByte(line, ')')
	if openParen < 0 || closeParen < 0 || closeParen < openParen {
		return Stat{}, fmt.Errorf("pid %d: malformed stat line", pid)
	}

	comm := line[openParen+1 : closeParen]
	rest := strings.TrimSpace(line[closeParen+1:])
	fields := strings.Fields(rest)
	if len(fields) < 20 {
		return Stat{}, fmt.Errorf("pid %d: stat line has too few fields after comm", pid)
	}

	// fields[0] = state, fields[1] = ppid (stat fields 3 and 4; comm
	// and pid itself are consumed separately).
	state := fields[0]
	ppid, err := strconv.Atoi(fields[1])
	if err != nil {
		return Stat{}, fmt.Errorf("pid %d: parsing ppid: %w", pid, err)
	}

	// Field 22 (starttime) is fields[19] in this 0-indexed slice
	// (fields[0] is field 3 of the stat line).
	var startTime uint64
	if len(fields) > 19 {
		startTime, _ = strconv.ParseUint(fields[19], 10, 64)
	}

	return Stat{
		Pid:              pid,
		Comm:             comm,
		State:            state[0],
		Ppid:             ppid,
		StartTimeJiffies: startTime,
	}, nil
}

var pageSize = os.Getpagesize()

// RSSKB reads /proc/<pid>/statm and returns resident set size in
// kilobytes: field index 1 (resident pages) times the page size,
// divided by 1024.
func RSSKB(pid int) (int, error) {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/statm", pid))
	if err != nil {
		return 0, fmt.Errorf("reading statm for pid %d: %w", pid, err)
	}
	fields := strings.Fields(string(data))
	if len(fields) < 2 {
		return 0, fmt.Errorf("pid %d: malformed statm line", pid)
	}
	rssPages, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, fmt.Errorf("pid %d: parsing rss pages: %w", pid, err)
	}
	return (rssPages * pageSize) / 1024, nil
}

// MyPids returns every pid in /proc whose directory is owned by the
// current uid. Per-pid stat errors (the process vanished during
// enumeration) are ignored, not surfaced.
func MyPids() ([]int, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil, fmt.Errorf("reading /proc: %w", err)
	}
	uid := os.Getuid()

	var pids []int
	for _, entry := range entries {
		pid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}
		info, err := os.Stat("/proc/" + entry.Name())
		if err != nil {
			continue
		}
		if ownerUID(info) == uid {
			pids = append(pids, pid)
		}
	}
	return pids, nil
}

// Children returns the pids among candidates whose ppid is exactly
// pid. Callers typically pass MyPids() as candidates.
func Children(pid int, candidates []int) []int {
	var out []int
	for _, c := range candidates {
		st, err := GetStat(c)
		if err != nil {
			continue
		}
		if st.Ppid == pid {
			out = append(out, c)
		}
	}
	return out
}

// Descendants returns the transitive closure of Children via BFS,
// bounded by len(candidates) iterations so a process-table race that
// briefly fabricates a cycle can't spin forever.
func Descendants(pid int, candidates []int) []int {
	seen := map[int]bool{pid: true}
	queue := []int{pid}
	var out []int

	bound := len(candidates) + 1
	for i := 0; len(queue) > 0 && i < bound; i++ {
		cur := queue[0]
		queue = queue[1:]
		for _, child := range Children(cur, candidates) {
			if seen[child] {
				continue
			}
			seen[child] = true
			out = append(out, child)
			queue = append(queue, child)
		}
	}
	return out
}

// Exists reports whether path exists on disk.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Mtime returns the modification time, in seconds since the Unix
// epoch, of path. Returns an error if the path doesn't exist.
func Mtime(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.ModTime().Unix(), nil
}
