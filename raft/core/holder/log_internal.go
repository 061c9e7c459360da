package holder

import (
	"github.com/thinkermao/raftsm/utils"
)

// offset return the dummy entry's index.
func (l *Log) offset() uint64 {
	utils.Assert(len(l.entries) != 0, "require len(l.entries) great than zero")
	return l.entries[0].Index
}

func (l *Log) checkOutOfBounds(lo, hi uint64) {
	utils.Assert(lo <= hi, "%s invalid slice %d > %d", l.id, lo, hi)

	lower := l.FirstIndex()
	upper := l.LastIndex() + 1
	utils.Assert(!(lo < lower || hi > upper),
		"%s slice[%d, %d] out of bound[%d, %d]",
		l.id, lo, hi, lower, upper)
}

func (l *Log) validateConsistency() {
	for i := 0; i < len(l.entries)-1; i++ {
		utils.Assert(l.entries[i].Index+1 == l.entries[i+1].Index,
			"%s index:%d at:%d not sequences", l.id, l.entries[i].Index, i)
	}
}
