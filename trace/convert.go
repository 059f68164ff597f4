package trace

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sarchlab/cachesim/cache"
)

// ConvertText reads one hexadecimal address per line from in and writes them
// to out. A 0x prefix is optional. Blank lines and lines starting with # are
// skipped. It returns the number of addresses written; out is flushed.
func ConvertText(in io.Reader, out *Writer) (uint64, error) {
	scanner := bufio.NewScanner(in)
	line := 0
	var n uint64

	for scanner.Scan() {
		line++

		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		text = strings.TrimPrefix(strings.TrimPrefix(text, "0x"), "0X")

		addr, err := strconv.ParseUint(text, 16, cache.AddressWidth)
		if err != nil {
			return n, fmt.Errorf("line %d: %w", line, err)
		}

		if err := out.Write(addr); err != nil {
			return n, fmt.Errorf("line %d: %w", line, err)
		}
		n++
	}

	if err := scanner.Err(); err != nil {
		return n, fmt.Errorf("failed to read text trace: %w", err)
	}

	if err := out.Flush(); err != nil {
		return n, fmt.Errorf("failed to write trace: %w", err)
	}

	return n, nil
}
