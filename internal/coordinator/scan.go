package coordinator

import (
	"context"
	"errors"
	"strings"

	"nfcescan/internal/core"
	"nfcescan/internal/log"
)

var (
	// ErrNotURL rejects scanner input that does not look like a link.
	ErrNotURL = errors.New("scanned text is not a URL")
	// ErrScanLocked means a reading is in flight or awaiting ResetScan.
	ErrScanLocked = errors.New("scanner is locked")
)

// Scan submits a string read by the scanner. Input not starting with
// "http" is ignored with ErrNotURL. While a scan is in flight, and after a
// successful one until ResetScan, further readings return ErrScanLocked
// without a notice, since cameras report the same code many times per
// second. A failed scan re-arms the scanner after the configured cooldown.
func (c *Coordinator) Scan(ctx context.Context, raw string) (core.Receipt, error) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "http") {
		return core.Receipt{}, ErrNotURL
	}

	c.mu.Lock()
	if c.scanBusy || c.scanLocked {
		c.mu.Unlock()
		return core.Receipt{}, ErrScanLocked
	}
	c.scanBusy = true
	c.scanGen++
	gen := c.scanGen
	c.mu.Unlock()

	r, err := c.svc.ScanURL(ctx, raw)

	c.mu.Lock()
	c.scanBusy = false
	if err != nil {
		c.scanLocked = true
		c.mu.Unlock()
		c.afterFunc(c.scanCooldown, func() { c.rearmScan(gen) })
		return core.Receipt{}, c.fail(ctx, log.OpScan, err)
	}
	c.scanLocked = true
	c.lastScan = cloneReceipt(&r)
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "Receipt scanned",
		log.FieldReceiptID, r.ID,
		log.FieldVendor, r.Vendor,
		log.FieldCached, r.Cached)
	if r.Cached {
		c.notify(Notice{Level: LevelInfo, Op: log.OpScan, Message: "Esta nota já estava salva."})
	} else {
		c.succeed(log.OpScan, "Nota lida com sucesso!")
	}
	return r, nil
}

// rearmScan unlocks the scanner unless another reading started since gen.
func (c *Coordinator) rearmScan(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.scanGen == gen && !c.scanBusy {
		c.scanLocked = false
	}
}

// ResetScan clears the last-scan buffer and re-arms the scanner for a new
// reading.
func (c *Coordinator) ResetScan() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastScan = nil
	c.scanLocked = false
	if c.pendingItem != 0 && c.selected == nil {
		c.pendingItem = 0
	}
}
