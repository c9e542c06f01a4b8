package lifecycle

import (
	"strconv"
	"syscall"
)

func syscallKill(pid int) {
	syscall.Kill(pid, syscall.SIGKILL)
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
