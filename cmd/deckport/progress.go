package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/schollz/progressbar/v3"

	"deckport/internal/assets"
)

// drainProgress draws one progress bar per asset chunk.
type drainProgress struct {
	out io.Writer

	mu  sync.Mutex
	bar *progressbar.ProgressBar
}

var _ assets.Observer = (*drainProgress)(nil)

func newDrainProgress(out io.Writer) *drainProgress {
	return &drainProgress{out: out}
}

func (p *drainProgress) ChunkStarted(index, total, size int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bar = progressbar.NewOptions(size,
		progressbar.OptionSetWriter(p.out),
		progressbar.OptionSetDescription(fmt.Sprintf("assets chunk %d/%d", index, total)),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionClearOnFinish(),
	)
}

func (p *drainProgress) AssetFinished(assets.Descriptor, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil {
		_ = p.bar.Add(1)
	}
}

func (p *drainProgress) ChunkFinished(int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil {
		_ = p.bar.Finish()
		p.bar = nil
	}
}
