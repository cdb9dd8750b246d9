package mocks

import (
	"context"
	"fmt"
	"sync"

	json "github.com/json-iterator/go"

	"github.com/xkilldash9x/uiprobe/api/schemas"
)

// FakePage is a scripted, in-memory schemas.Page for probe tests where a
// call-by-call mock would obscure the scenario. Hooks model the application:
// OnNavigate decides where a navigation lands, OnClick reacts to clicks.
type FakePage struct {
	mu sync.Mutex

	URL      string
	Storage  map[string]string
	Elements map[string]int
	Visible  map[string]int
	Viewport [2]int
	Filled   map[string]string
	Clicked  []string
	Visited  []string
	Shots    int

	OnNavigate func(p *FakePage, url string) string
	OnReload   func(p *FakePage, wait schemas.WaitPolicy)
	OnClick    func(p *FakePage, selector string)
	OnViewport func(p *FakePage, width, height int)
	// OnEvaluate returns the script's result; it is passed through JSON into
	// the caller's destination the way a CDP evaluation would be.
	OnEvaluate func(p *FakePage, script string) (interface{}, error)

	// Err, when set, is returned by every call.
	Err error
}

var _ schemas.Page = (*FakePage)(nil)

// NewFakePage returns a page sitting on about:blank.
func NewFakePage() *FakePage {
	return &FakePage{
		URL:      "about:blank",
		Storage:  make(map[string]string),
		Elements: make(map[string]int),
		Visible:  make(map[string]int),
		Filled:   make(map[string]string),
	}
}

// Set replaces the match count of selector; hooks call it while the lock is held.
func (p *FakePage) Set(selector string, n int) {
	p.Elements[selector] = n
}

func (p *FakePage) Navigate(ctx context.Context, url string, wait schemas.WaitPolicy) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.Visited = append(p.Visited, url)
	p.URL = url
	if p.OnNavigate != nil {
		p.URL = p.OnNavigate(p, url)
	}
	return nil
}

func (p *FakePage) Reload(ctx context.Context, wait schemas.WaitPolicy) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	if p.OnReload != nil {
		p.OnReload(p, wait)
	}
	return nil
}

func (p *FakePage) CurrentURL(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.URL, p.Err
}

func (p *FakePage) Locate(ctx context.Context, selector string) ([]schemas.ElementHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return nil, p.Err
	}
	n := p.Elements[selector]
	out := make([]schemas.ElementHandle, n)
	for i := range out {
		out[i] = schemas.ElementHandle{NodeID: int64(i + 1), Selector: selector, Index: i}
	}
	return out, nil
}

func (p *FakePage) Fill(ctx context.Context, el schemas.ElementHandle, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.Filled[el.Selector] = text
	return nil
}

func (p *FakePage) Click(ctx context.Context, el schemas.ElementHandle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.Clicked = append(p.Clicked, el.Selector)
	if p.OnClick != nil {
		p.OnClick(p, el.Selector)
	}
	return nil
}

func (p *FakePage) Evaluate(ctx context.Context, script string, res interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	if p.OnEvaluate == nil {
		return fmt.Errorf("fake page: no evaluate hook")
	}
	v, err := p.OnEvaluate(p, script)
	if err != nil || res == nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, res)
}

func (p *FakePage) CountVisible(ctx context.Context, selector string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return 0, p.Err
	}
	if n, ok := p.Visible[selector]; ok {
		return n, nil
	}
	return p.Elements[selector], nil
}

func (p *FakePage) SetViewport(ctx context.Context, width, height int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.Viewport = [2]int{width, height}
	if p.OnViewport != nil {
		p.OnViewport(p, width, height)
	}
	return nil
}

func (p *FakePage) CaptureScreenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return nil, p.Err
	}
	p.Shots++
	return []byte("\x89PNG"), nil
}

func (p *FakePage) ReadLocalStorageItem(ctx context.Context, key string) (string, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return "", false, p.Err
	}
	v, ok := p.Storage[key]
	return v, ok, nil
}

func (p *FakePage) WriteLocalStorageItem(ctx context.Context, key, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.Storage[key] = value
	return nil
}
