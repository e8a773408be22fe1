package lib

import (
	"bytes"
	"io"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Compare modes.
const (
	// CompareBytes streams both sides in lockstep and compares every byte.
	CompareBytes = "bytes"
	// CompareXXHash hashes both sides and compares digests; cheaper on
	// remote filesystems at the cost of exactness-in-principle.
	CompareXXHash = "xxhash"
)

const defaultCompareChunk = 256 * 1024

// Pool of chunk buffers reused across comparisons so large trees don't
// allocate per file.
var bufPool = sync.Pool{
	New: func() interface{} {
		buffer := make([]byte, defaultCompareChunk)
		return &buffer
	},
}

func getChunkBuf(size int) *[]byte {
	buf := bufPool.Get().(*[]byte)
	if cap(*buf) < size {
		*buf = make([]byte, size)
	}
	return buf
}

// compareContent decides content equality for one two-sided file pair. The
// size check runs first and rejects with no reads; a both-empty pair is
// equal without opening either side. A returned error means the answer is
// unknown; callers classify conservatively.
func compareContent(left, right Path, mode string, chunk, threshold int, cached *PairInfo) (bool, error) {
	if chunk <= 0 {
		chunk = defaultCompareChunk
	}
	var leftSize, rightSize int64
	if cached != nil {
		leftSize, rightSize = cached.LeftSize, cached.RightSize
	} else {
		leftStat, err := left.Stat()
		if err != nil {
			return false, newStatEntryError(left.String(), SideLeft, err)
		}
		rightStat, err := right.Stat()
		if err != nil {
			return false, newStatEntryError(right.String(), SideRight, err)
		}
		leftSize, rightSize = leftStat.Size, rightStat.Size
	}
	if leftSize != rightSize {
		return false, nil
	}
	if leftSize == 0 {
		return true, nil
	}

	if mode == CompareXXHash {
		leftSum, err := hashPath(left, leftSize, chunk, threshold)
		if err != nil {
			return false, newReadContentError(left.String(), SideLeft, err)
		}
		rightSum, err := hashPath(right, rightSize, chunk, threshold)
		if err != nil {
			return false, newReadContentError(right.String(), SideRight, err)
		}
		return leftSum == rightSum, nil
	}

	leftReader, err := left.Open()
	if err != nil {
		return false, newOpenContentError(left.String(), SideLeft, err)
	}
	defer leftReader.Close()
	rightReader, err := right.Open()
	if err != nil {
		return false, newOpenContentError(right.String(), SideRight, err)
	}
	defer rightReader.Close()
	equal, err := readersEqual(leftReader, rightReader, chunk)
	if err != nil {
		return false, newReadContentError(left.String(), SideLeft, err)
	}
	return equal, nil
}

// readersEqual streams both readers in lockstep chunks, comparing and
// discarding as it goes; nothing is buffered beyond one chunk per side.
// Sizes were checked beforehand, so a side ending early just means the
// content changed underneath us and reports different, not an error.
func readersEqual(left, right io.Reader, chunk int) (bool, error) {
	leftBuf := getChunkBuf(chunk)
	defer bufPool.Put(leftBuf)
	rightBuf := getChunkBuf(chunk)
	defer bufPool.Put(rightBuf)
	lb := (*leftBuf)[:chunk]
	rb := (*rightBuf)[:chunk]
	for {
		ln, lerr := io.ReadFull(left, lb)
		rn, rerr := io.ReadFull(right, rb)
		if ln != rn {
			return false, nil
		}
		if !bytes.Equal(lb[:ln], rb[:rn]) {
			return false, nil
		}
		leftDone := lerr == io.EOF || lerr == io.ErrUnexpectedEOF
		rightDone := rerr == io.EOF || rerr == io.ErrUnexpectedEOF
		if lerr != nil && !leftDone {
			return false, lerr
		}
		if rerr != nil && !rightDone {
			return false, rerr
		}
		if leftDone && rightDone {
			return true, nil
		}
		if leftDone != rightDone {
			return false, nil
		}
	}
}

// hashPath digests one side's content with xxhash. Files under threshold
// are read in full; larger ones stream through a pooled chunk buffer.
func hashPath(p Path, size int64, chunk, threshold int) (uint64, error) {
	reader, err := p.Open()
	if err != nil {
		return 0, err
	}
	defer reader.Close()
	if size < int64(threshold) {
		full := make([]byte, size)
		n, err := io.ReadFull(reader, full)
		if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			return 0, err
		}
		return xxhash.Sum64(full[:n]), nil
	}
	buf := getChunkBuf(chunk)
	defer bufPool.Put(buf)
	readBuffer := (*buf)[:chunk]
	hasher := xxhash.New()
	for {
		bytesRead, err := reader.Read(readBuffer)
		if bytesRead > 0 {
			hasher.Write(readBuffer[:bytesRead])
		}
		if err == io.EOF {
			return hasher.Sum64(), nil
		}
		if err != nil {
			return 0, err
		}
	}
}
