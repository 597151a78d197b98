package session

import (
	"image"
	"image/draw"
	"sync"

	"github.com/getcharzp/go-clickseg/sam"
)

// Store 当前底图与其特征, 上传新图片时整体替换
type Store struct {
	mu         sync.RWMutex
	base       *image.RGBA
	bundle     sam.Bundle
	generation uint64
}

// Set 替换底图和特征, 返回新的代数
func (s *Store) Set(img image.Image, bundle sam.Bundle) uint64 {
	b := img.Bounds()
	base := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(base, base.Bounds(), img, b.Min, draw.Src)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.base = base
	s.bundle = bundle
	s.generation++
	return s.generation
}

// Snapshot 返回底图、特征和代数; 未加载图片时 ok 为 false
//
// 返回的底图和特征只读
func (s *Store) Snapshot() (base *image.RGBA, bundle sam.Bundle, generation uint64, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.base, s.bundle, s.generation, s.base != nil
}

// Generation 当前代数, 每次 Set 加一
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Size 底图尺寸
func (s *Store) Size() (w, h int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.base == nil {
		return 0, 0
	}
	return s.base.Bounds().Dx(), s.base.Bounds().Dy()
}
