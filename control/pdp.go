package control

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"i4.energy/across/nbctl/at"
)

const (
	cmdPDPList = "AT+CGDCONT?"
	cmdPDPSet  = "AT+CGDCONT="
	keyPDP     = "+CGDCONT"
)

// PDPContext is a packet data bearer definition.
type PDPContext struct {
	CID  int    `json:"cid"`
	Type string `json:"type"`
	APN  string `json:"apn"`
}

// PDPContextControl lists and defines PDP contexts.
//
// Query replaces a local cache with the modem's current contexts. Set does
// not touch the cache; query again to observe a change.
type PDPContextControl struct {
	base

	mu sync.RWMutex
	// contexts is ordered by CID. Entries sharing a CID are all kept, in
	// the order they were reported.
	contexts []PDPContext
}

func NewPDPContextControl(sender Sender, opts ...Option) *PDPContextControl {
	return &PDPContextControl{base: newBase(sender, opts)}
}

func (c *PDPContextControl) Kind() Kind { return KindPDPContext }

// Query refreshes the cached contexts. On failure the cache is left as it
// was.
func (c *PDPContextControl) Query(ctx context.Context) error {
	if !c.readable {
		return fmt.Errorf("%s: %w", cmdPDPList, ErrNotReadable)
	}
	resp, err := c.send(ctx, cmdPDPList, c.readTimeout)
	if err != nil {
		return err
	}

	var contexts []PDPContext
	for _, v := range resp.Values(keyPDP) {
		contexts = insertContext(contexts, parsePDPContext(v))
	}

	c.mu.Lock()
	c.contexts = contexts
	c.mu.Unlock()
	return nil
}

// Get queries the modem and returns the refreshed contexts.
func (c *PDPContextControl) Get(ctx context.Context) ([]PDPContext, error) {
	if err := c.Query(ctx); err != nil {
		return nil, err
	}
	return c.Contexts(), nil
}

// Contexts returns the cached contexts ordered by CID.
func (c *PDPContextControl) Contexts() []PDPContext {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.contexts)
}

// ContextsByCID returns every cached context with the given CID.
func (c *PDPContextControl) ContextsByCID(cid int) []PDPContext {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var found []PDPContext
	for _, pc := range c.contexts {
		if pc.CID == cid {
			found = append(found, pc)
		}
	}
	return found
}

// HasContextByTypeAndAPN reports whether a cached context matches both type
// and apn exactly.
func (c *PDPContextControl) HasContextByTypeAndAPN(pdpType, apn string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.ContainsFunc(c.contexts, func(pc PDPContext) bool {
		return pc.Type == pdpType && pc.APN == apn
	})
}

// Set defines the context pc on the modem.
func (c *PDPContextControl) Set(ctx context.Context, pc PDPContext) error {
	if !c.writeable {
		return fmt.Errorf("%s: %w", cmdPDPSet, ErrNotWriteable)
	}
	cmd := fmt.Sprintf(`%s%d,"%s","%s"`, cmdPDPSet, pc.CID, pc.Type, pc.APN)
	return c.execOK(ctx, cmd, c.writeTimeout)
}

// parsePDPContext decodes `<cid>,"<type>","<apn>"[,...]`. Missing fields stay
// empty, fields past the APN are ignored and a non-numeric CID decodes as 0.
func parsePDPContext(value string) PDPContext {
	var pc PDPContext
	for i, f := range at.SplitCSV(value) {
		switch i {
		case 0:
			pc.CID = at.Atoi(f)
		case 1:
			pc.Type = at.Unquote(f)
		case 2:
			pc.APN = at.Unquote(f)
		}
	}
	return pc
}

// insertContext inserts pc after every entry with a CID not greater than its
// own.
func insertContext(contexts []PDPContext, pc PDPContext) []PDPContext {
	i := len(contexts)
	for i > 0 && contexts[i-1].CID > pc.CID {
		i--
	}
	return slices.Insert(contexts, i, pc)
}

var (
	_ Control              = (*PDPContextControl)(nil)
	_ Getter[[]PDPContext] = (*PDPContextControl)(nil)
	_ Setter[PDPContext]   = (*PDPContextControl)(nil)
)
