package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Tab is a page the companion is attached to.
type Tab struct {
	Page   *rod.Page
	URL    string
	ID     string
	router *rod.HijackRouter
}

// OpenTab creates a tab, applies stealth in headless mode and resource
// blocking, and navigates to pageURL.
func OpenTab(ctx context.Context, mgr *Manager, pageURL, id string) (*Tab, error) {
	b := mgr.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}

	var page *rod.Page
	var err error
	if mgr.cfg.Mode == Headless {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	t := &Tab{Page: page, URL: pageURL, ID: id}
	if len(mgr.cfg.ResourceBlocking) > 0 {
		t.router = blockResources(page, mgr.cfg.ResourceBlocking)
	}

	navCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		t.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		mgr.cfg.Logger.Warn("browser: wait load timeout", "url", pageURL, "error", err)
	}
	return t, nil
}

// AttachTabs wraps every page already open in the browser, for remote
// Chrome instances the user drives directly.
func AttachTabs(mgr *Manager) ([]*Tab, error) {
	b := mgr.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}
	pages, err := b.Pages()
	if err != nil {
		return nil, fmt.Errorf("browser: list pages: %w", err)
	}
	tabs := make([]*Tab, 0, len(pages))
	for _, p := range pages {
		info, err := p.Info()
		if err != nil || !userPage(info) {
			continue
		}
		tabs = append(tabs, &Tab{Page: p, URL: info.URL, ID: string(p.TargetID)})
	}
	return tabs, nil
}

// userPage reports whether a target is a top-level tab a user can type in.
func userPage(info *proto.TargetTargetInfo) bool {
	return info != nil && info.Type == proto.TargetTargetInfoTypePage && !strings.HasPrefix(info.URL, "devtools://")
}

// WatchTabs calls created for every tab opened in the browser after the
// call and destroyed with the ID of every target that goes away, until ctx
// ends. Callbacks run on their own goroutines.
func WatchTabs(ctx context.Context, mgr *Manager, created func(*Tab), destroyed func(id string)) error {
	b := mgr.Browser()
	if b == nil {
		return fmt.Errorf("browser: no active browser")
	}
	if err := (proto.TargetSetDiscoverTargets{Discover: true}).Call(b); err != nil {
		return fmt.Errorf("browser: discover targets: %w", err)
	}
	wait := b.Context(ctx).EachEvent(
		func(e *proto.TargetTargetCreated) {
			if !userPage(e.TargetInfo) {
				return
			}
			info := *e.TargetInfo
			go func() {
				p, err := b.PageFromTarget(info.TargetID)
				if err != nil {
					mgr.cfg.Logger.Warn("browser: attach new tab", "target", info.TargetID, "error", err)
					return
				}
				created(&Tab{Page: p, URL: info.URL, ID: string(info.TargetID)})
			}()
		},
		func(e *proto.TargetTargetDestroyed) {
			go destroyed(string(e.TargetID))
		},
	)
	go wait()
	return nil
}

// Open navigates the browser to rawURL in a new tab and leaves it to the
// user.
func Open(mgr *Manager, rawURL string) error {
	b := mgr.Browser()
	if b == nil {
		return fmt.Errorf("browser: no active browser")
	}
	if _, err := b.Page(proto.TargetCreateTarget{URL: rawURL}); err != nil {
		return fmt.Errorf("browser: open %s: %w", rawURL, err)
	}
	return nil
}

// Close stops request interception and closes the tab.
func (t *Tab) Close() error {
	if t.router != nil {
		t.router.Stop()
	}
	if t.Page != nil {
		return t.Page.Close()
	}
	return nil
}
