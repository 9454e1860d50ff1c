package storage

import (
	"encoding/binary"
	"fmt"
	"strconv"
)

// Bucket names
const (
	bucketItems       = "items"        // itemID -> DataItem
	bucketJournal     = "journal"      // seq -> Operation (локальные операции, еще не подтвержденные пиром)
	bucketJournalItem = "journal_item" // itemID \x00 seq -> seq
	bucketApplied     = "applied"      // opID -> origin:seq
	bucketMeta        = "meta"         // служебные значения реплики
	bucketConflicts   = "conflicts"    // itemID -> ManualConflict
	bucketPeers       = "peers"        // peerID -> последний подтвержденный вектор пира
)

// Meta keys
var (
	metaReplicaID = []byte("replica_id")
	metaSeq       = []byte("seq")
	metaClock     = []byte("clock")
	metaVector    = []byte("vector")
)

// Buckets returns every bucket the store uses. Backends that need buckets
// created upfront (bbolt) are opened with this list.
func Buckets() []string {
	return []string{
		bucketItems,
		bucketJournal,
		bucketJournalItem,
		bucketApplied,
		bucketMeta,
		bucketConflicts,
		bucketPeers,
	}
}

func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}

func parseSeqKey(key []byte) (uint64, error) {
	if len(key) != 8 {
		return 0, fmt.Errorf("invalid seq key length %d", len(key))
	}
	return binary.BigEndian.Uint64(key), nil
}

func itemPrefix(itemID string) []byte {
	return append([]byte(itemID), 0)
}

func journalItemKey(itemID string, seq uint64) []byte {
	return append(itemPrefix(itemID), seqKey(seq)...)
}

func encodeUint(v uint64) []byte {
	return []byte(strconv.FormatUint(v, 10))
}

func decodeUint(data []byte) (uint64, error) {
	return strconv.ParseUint(string(data), 10, 64)
}

func decodeInt(data []byte) (int64, error) {
	return strconv.ParseInt(string(data), 10, 64)
}

func appliedValue(origin string, seq uint64) []byte {
	return []byte(origin + ":" + strconv.FormatUint(seq, 10))
}
