package badger

import (
	"encoding/binary"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/libris/core"
)

// Key prefixes for different data types
const (
	bookPrefix       = "bk:"   // bk:id -> book
	bookISBNPrefix   = "bki:"  // bki:isbn -> id
	bookOrderPrefix  = "bko:"  // bko:seq -> id
	bookSeqPrefix    = "bks:"  // bks:id -> seq
	bookOrderSeq     = "bkseq" // insertion order sequence
	userPrefix       = "us:"   // us:id -> user
	userCodePrefix   = "usc:"  // usc:code -> id
	loanPrefix       = "ln:"   // ln:uuid -> loan
	loanDatePrefix   = "lnd:"  // lnd:borrowed:uuid -> uuid
	loanUserPrefix   = "lnu:"  // lnu:user:borrowed:uuid -> uuid
	loanActivePrefix = "lna:"  // lna:user:book -> uuid
)

// makeIDKey generates prefix:id with the ID in big endian order so keys sort numerically.
func makeIDKey(prefix string, id uint64) []byte {
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], id)
	return buf
}

// makeStringKey generates prefix:value.
func makeStringKey(prefix, value string) []byte {
	return append([]byte(prefix), value...)
}

func makeBookKey(id core.ID) []byte {
	return makeIDKey(bookPrefix, uint64(id))
}

func makeBookISBNKey(isbn string) []byte {
	return makeStringKey(bookISBNPrefix, isbn)
}

func makeBookOrderKey(seq uint64) []byte {
	return makeIDKey(bookOrderPrefix, seq)
}

func makeBookSeqKey(id core.ID) []byte {
	return makeIDKey(bookSeqPrefix, uint64(id))
}

func makeUserKey(id core.ID) []byte {
	return makeIDKey(userPrefix, uint64(id))
}

func makeUserCodeKey(code string) []byte {
	return makeStringKey(userCodePrefix, code)
}

func makeLoanKey(id uuid.UUID) []byte {
	return append([]byte(loanPrefix), id[:]...)
}

// makeLoanDateKey generates a composite key for the checkout date index.
// Format: prefix:timestamp:uuid
func makeLoanDateKey(borrowed time.Time, id uuid.UUID) []byte {
	buf := makePartialLoanDateKey(borrowed)
	return append(buf, id[:]...)
}

// makePartialLoanDateKey generates a partial key for date range queries.
// Format: prefix:timestamp
func makePartialLoanDateKey(borrowed time.Time) []byte {
	buf := make([]byte, len(loanDatePrefix)+8)
	offset := copy(buf, loanDatePrefix)
	binary.BigEndian.PutUint64(buf[offset:], sortableMicros(borrowed))
	return buf
}

// makeLoanUserKey generates a composite key for the per-user index.
// Format: prefix:userID:timestamp:uuid
func makeLoanUserKey(userID core.ID, borrowed time.Time, id uuid.UUID) []byte {
	buf := makePartialLoanUserKey(userID)
	buf = binary.BigEndian.AppendUint64(buf, sortableMicros(borrowed))
	return append(buf, id[:]...)
}

// makePartialLoanUserKey generates a partial key for per-user queries.
// Format: prefix:userID
func makePartialLoanUserKey(userID core.ID) []byte {
	return makeIDKey(loanUserPrefix, uint64(userID))
}

// makeLoanActiveKey generates the key marking an unreturned loan.
// Format: prefix:userID:bookID
func makeLoanActiveKey(userID, bookID core.ID) []byte {
	buf := makeIDKey(loanActivePrefix, uint64(userID))
	return binary.BigEndian.AppendUint64(buf, uint64(bookID))
}

// sortableMicros maps t onto an unsigned value that sorts in time order,
// including dates before 1970.
func sortableMicros(t time.Time) uint64 {
	return uint64(t.UnixMicro()) ^ (1 << 63)
}
