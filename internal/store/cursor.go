package store

import "strconv"

func parseSeq(cursor string) uint64 {
	n, err := strconv.ParseUint(cursor, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func formatSeq(seq uint64) string { return strconv.FormatUint(seq, 10) }
