// Package flate implements DEFLATE decompression as described in RFC 1951.
// Unlike the standard library's compress/flate, this decoder consumes an
// already-materialised byte buffer and can also run on a caller-supplied
// bit reader (DecompressReader), so it can be embedded directly by outer
// formats (gzip, zlib) that need the same bit stream.
package flate

import (
	"errors"
	"fmt"

	"github.com/elliotnunn/resourceform/bitio"
	"github.com/elliotnunn/resourceform/huffman"
)

// Error kinds raised by Decompress. All are fatal: there is no
// partial-result recovery inside a single decode.
var (
	ErrWrongUncompressedBlockLengths = errors.New("flate: stored block length/complement mismatch")
	ErrWrongBlockType                = errors.New("flate: reserved block type 3")
	ErrWrongSymbol                   = errors.New("flate: decoded symbol out of range")
	ErrSymbolNotFound                = errors.New("flate: huffman decoder could not resolve a prefix")
)

const numCodes = 19 // number of codes in the code-length meta-alphabet

var lengthBase = [29]int{
	3, 4, 5, 6, 7, 8, 9, 10, 11, 13, 15, 17, 19, 23, 27, 31,
	35, 43, 51, 59, 67, 83, 99, 115, 131, 163, 195, 227, 258,
}

var distanceBase = [30]int{
	1, 2, 3, 4, 5, 7, 9, 13, 17, 25, 33, 49, 65, 97, 129, 193,
	257, 385, 513, 769, 1025, 1537, 2049, 3073, 4097, 6145, 8193, 12289, 16385, 24577,
}

// codeOrder is the fixed order in which code-length-code lengths are
// transmitted for a dynamic Huffman block (RFC 1951 section 3.2.7).
var codeOrder = [19]int{16, 17, 18, 0, 8, 7, 9, 6, 10, 5, 11, 4, 12, 3, 13, 2, 14, 1, 15}

var fixedLiteralTree = huffman.FromBootstrap([]huffman.BootstrapPair{
	{0, 8}, {144, 9}, {256, 7}, {280, 8}, {288, -1},
})

var fixedDistanceTree = huffman.FromBootstrap([]huffman.BootstrapPair{
	{0, 5}, {32, -1},
})

// Decompress consumes a DEFLATE bit stream and returns the decompressed
// bytes. data is read as a fresh, LSB-first bit reader.
func Decompress(data []byte) ([]byte, error) {
	return DecompressReader(bitio.New(data, bitio.LSBFirst))
}

// DecompressReader decompresses from an already-constructed bit reader, for
// embedding in outer formats such as gzip or zlib. r MUST be configured
// LSB-first.
func DecompressReader(r *bitio.Reader) ([]byte, error) {
	var out []byte
	for {
		final, err := r.Bit()
		if err != nil {
			return nil, err
		}
		btypeBits, err := r.IntFromBits(2)
		if err != nil {
			return nil, err
		}

		switch btypeBits {
		case 0:
			out, err = storedBlock(r, out)
		case 1:
			out, err = huffmanBlock(r, out, fixedLiteralTree, fixedDistanceTree)
		case 2:
			litTree, distTree, derr := readDynamicTrees(r)
			if derr != nil {
				return nil, derr
			}
			out, err = huffmanBlock(r, out, litTree, distTree)
		default:
			return nil, ErrWrongBlockType
		}
		if err != nil {
			return nil, err
		}

		if final == 1 {
			return out, nil
		}
	}
}

func storedBlock(r *bitio.Reader, out []byte) ([]byte, error) {
	r.SkipUntilNextByte()
	lengthBytes, err := r.Bytes(2)
	if err != nil {
		return nil, err
	}
	nlengthBytes, err := r.Bytes(2)
	if err != nil {
		return nil, err
	}
	length := uint16(lengthBytes[0]) | uint16(lengthBytes[1])<<8
	nlength := uint16(nlengthBytes[0]) | uint16(nlengthBytes[1])<<8
	if nlength != ^length {
		return nil, ErrWrongUncompressedBlockLengths
	}
	raw, err := r.Bytes(int(length))
	if err != nil {
		return nil, err
	}
	return append(out, raw...), nil
}

func readDynamicTrees(r *bitio.Reader) (*huffman.Tree, *huffman.Tree, error) {
	hlitN, err := r.IntFromBits(5)
	if err != nil {
		return nil, nil, err
	}
	hlit := int(hlitN) + 257

	hdistN, err := r.IntFromBits(5)
	if err != nil {
		return nil, nil, err
	}
	hdist := int(hdistN) + 1

	hclenN, err := r.IntFromBits(4)
	if err != nil {
		return nil, nil, err
	}
	hclen := int(hclenN) + 4

	var clLengths [numCodes]int
	for i := 0; i < hclen; i++ {
		l, err := r.IntFromBits(3)
		if err != nil {
			return nil, nil, err
		}
		clLengths[codeOrder[i]] = int(l)
	}
	clTree := huffman.FromLengths(clLengths[:])

	total := hlit + hdist
	lengths := make([]int, 0, total)
	for len(lengths) < total {
		sym := clTree.DecodeNext(r)
		switch {
		case sym == huffman.NoSymbol:
			return nil, nil, ErrSymbolNotFound
		case sym >= 0 && sym <= 15:
			lengths = append(lengths, sym)
		case sym == 16:
			if len(lengths) == 0 {
				return nil, nil, fmt.Errorf("flate: repeat code 16 with no previous length: %w", ErrWrongSymbol)
			}
			prev := lengths[len(lengths)-1]
			n, err := r.IntFromBits(2)
			if err != nil {
				return nil, nil, err
			}
			for i := 0; i < int(n)+3; i++ {
				lengths = append(lengths, prev)
			}
		case sym == 17:
			n, err := r.IntFromBits(3)
			if err != nil {
				return nil, nil, err
			}
			for i := 0; i < int(n)+3; i++ {
				lengths = append(lengths, 0)
			}
		case sym == 18:
			n, err := r.IntFromBits(7)
			if err != nil {
				return nil, nil, err
			}
			for i := 0; i < int(n)+11; i++ {
				lengths = append(lengths, 0)
			}
		default:
			return nil, nil, ErrWrongSymbol
		}
	}
	if len(lengths) > total {
		lengths = lengths[:total]
	}

	litTree := huffman.FromLengths(lengths[:hlit])
	distTree := huffman.FromLengths(lengths[hlit : hlit+hdist])
	return litTree, distTree, nil
}

func huffmanBlock(r *bitio.Reader, out []byte, litTree, distTree *huffman.Tree) ([]byte, error) {
	for {
		sym := litTree.DecodeNext(r)
		switch {
		case sym == huffman.NoSymbol:
			return nil, ErrSymbolNotFound
		case sym >= 0 && sym <= 255:
			out = append(out, byte(sym))
		case sym == 256:
			return out, nil
		case sym >= 257 && sym <= 285:
			length, err := matchLength(r, sym)
			if err != nil {
				return nil, err
			}
			distCode := distTree.DecodeNext(r)
			if distCode == huffman.NoSymbol {
				return nil, ErrSymbolNotFound
			}
			if distCode < 0 || distCode > 29 {
				return nil, ErrWrongSymbol
			}
			distance, err := matchDistance(r, distCode)
			if err != nil {
				return nil, err
			}
			if distance > len(out) {
				return nil, fmt.Errorf("flate: back-reference distance %d exceeds %d bytes of output", distance, len(out))
			}
			start := len(out) - distance
			for i := 0; i < length; i++ {
				out = append(out, out[start+i])
			}
		default:
			return nil, ErrWrongSymbol
		}
	}
}

func matchLength(r *bitio.Reader, sym int) (int, error) {
	idx := sym - 257
	var extraBits int
	switch {
	case sym <= 260 || sym == 285:
		extraBits = 0
	default:
		extraBits = ((sym - 257) >> 2) - 1
	}
	base := lengthBase[idx]
	if extraBits == 0 {
		return base, nil
	}
	extra, err := r.IntFromBits(extraBits)
	if err != nil {
		return 0, err
	}
	return base + int(extra), nil
}

func matchDistance(r *bitio.Reader, code int) (int, error) {
	var extraBits int
	switch {
	case code <= 1:
		extraBits = 0
	default:
		extraBits = (code >> 1) - 1
	}
	base := distanceBase[code]
	if extraBits == 0 {
		return base, nil
	}
	extra, err := r.IntFromBits(extraBits)
	if err != nil {
		return 0, err
	}
	return base + int(extra), nil
}
