// Package loader reads Y86-64 program images and places them in memory.
package loader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrImageTooLarge is returned when an image does not fit in memory.
var ErrImageTooLarge = errors.New("image exceeds memory capacity")

// MaxImageSize bounds the address space a listing may describe.
const MaxImageSize = 1 << 32

// Memory is the part of the memory collaborator the loader writes to.
type Memory interface {
	Size() uint64
	LoadProgram(addr uint64, image []byte) error
}

// Image is a flat program image. Byte i of Data belongs at address i.
type Image struct {
	// Data contains the image bytes, starting at address 0.
	Data []byte
	// Source names where the image came from.
	Source string
}

// Size returns the image length in bytes.
func (img *Image) Size() uint64 {
	return uint64(len(img.Data))
}

// LoadInto copies the image into mem at address 0.
func (img *Image) LoadInto(mem Memory) error {
	if img.Size() > mem.Size() {
		return fmt.Errorf("%s: %w (%d > %d bytes)",
			img.Source, ErrImageTooLarge, img.Size(), mem.Size())
	}
	if err := mem.LoadProgram(0, img.Data); err != nil {
		return fmt.Errorf("failed to load %s: %w", img.Source, err)
	}
	return nil
}

// LoadBinary reads a raw binary image from path.
func LoadBinary(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return &Image{Data: data, Source: path}, nil
}

// LoadYO reads a .yo object listing from path.
func LoadYO(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open listing: %w", err)
	}
	defer func() { _ = f.Close() }()

	img, err := ParseYO(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	img.Source = path
	return img, nil
}

// Load picks LoadYO for files ending in ".yo" and LoadBinary otherwise.
func Load(path string) (*Image, error) {
	if strings.EqualFold(filepath.Ext(path), ".yo") {
		return LoadYO(path)
	}
	return LoadBinary(path)
}
