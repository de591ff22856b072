package midimtxt

import (
	"strconv"
	"strings"
)

func ccNumberName(n uint8) string {
	return "cc" + strconv.Itoa(int(n))
}

func parseCCNumberName(name string) (uint8, bool) {
	if !strings.HasPrefix(name, "cc") {
		return 0, false
	}
	n, err := strconv.Atoi(name[2:])
	if err != nil || n < 0 || n > 127 {
		return 0, false
	}
	return uint8(n), true
}
