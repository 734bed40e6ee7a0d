package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrBadChoice is returned for payloads that EncodeChoice did not produce.
var ErrBadChoice = errors.New("bot: malformed choice")

// EncodeChoice builds the compact button payload "<version>:<index>" used by
// channels whose callback data is size-limited.
func EncodeChoice(version uint64, index int) string {
	return strconv.FormatUint(version, 10) + ":" + strconv.Itoa(index)
}

// ParseChoice reverses EncodeChoice.
func ParseChoice(s string) (uint64, int, error) {
	v, i, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("%w %q", ErrBadChoice, s)
	}
	version, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w %q: version: %v", ErrBadChoice, s, err)
	}
	index, err := strconv.Atoi(i)
	if err != nil || index < 0 {
		return 0, 0, fmt.Errorf("%w %q: index", ErrBadChoice, s)
	}
	return version, index, nil
}
