package portal

import (
	"context"
	"fmt"
	"regexp"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// rodPage drives the portal in a dedicated Chrome instance
type rodPage struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	cfg      Config
}

func openRodPage(ctx context.Context, cfg Config) (calendarPage, error) {
	l := launcher.New().Headless(cfg.Headless)
	if cfg.ChromeBin != "" {
		l = l.Bin(cfg.ChromeBin)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	p := &rodPage{launcher: l, browser: browser, cfg: cfg}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("open page: %w", err)
	}
	p.page = page

	if err := page.Timeout(cfg.NavigationTimeout).Navigate(cfg.URL); err != nil {
		p.Close()
		return nil, fmt.Errorf("navigate to %s: %w", cfg.URL, err)
	}

	return p, nil
}

func (p *rodPage) timed() *rod.Page {
	return p.page.Timeout(p.cfg.NavigationTimeout)
}

func (p *rodPage) Login(personnelID, password string) error {
	page := p.timed()

	user, err := page.Element("#" + personnelIDField)
	if err != nil {
		return fmt.Errorf("personnel id field: %w", err)
	}
	if err := user.Input(personnelID); err != nil {
		return fmt.Errorf("enter personnel id: %w", err)
	}

	pass, err := page.Element("#" + passwordField)
	if err != nil {
		return fmt.Errorf("password field: %w", err)
	}
	if err := pass.Input(password); err != nil {
		return fmt.Errorf("enter password: %w", err)
	}
	if err := pass.Type(input.Enter); err != nil {
		return fmt.Errorf("submit login: %w", err)
	}

	// The calendar header only renders once the login postback succeeds
	if _, err := page.Element("#" + monthLabel); err != nil {
		return fmt.Errorf("roster page did not load: %w", err)
	}

	return nil
}

func (p *rodPage) CurrentMonth() (string, error) {
	label, err := p.timed().Element("#" + monthLabel)
	if err != nil {
		return "", err
	}
	return label.Text()
}

func (p *rodPage) NextMonth(expected string) error {
	page := p.timed()

	link, err := page.Element("#" + nextMonthLink)
	if err != nil {
		return fmt.Errorf("next month link: %w", err)
	}
	if err := link.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click next month: %w", err)
	}

	if _, err := page.ElementR("#"+monthLabel, regexp.QuoteMeta(expected)); err != nil {
		return fmt.Errorf("wait for %s: %w", expected, err)
	}

	return nil
}

func (p *rodPage) DateCellHTML(cellID string) (string, bool, error) {
	found, cell, err := p.timed().Has("#" + cellID)
	if err != nil {
		return "", false, err
	}
	if !found {
		return "", false, nil
	}

	inner, err := cell.Property("innerHTML")
	if err != nil {
		return "", true, err
	}

	return inner.Str(), true, nil
}

func (p *rodPage) Close() error {
	var err error
	if p.browser != nil {
		err = p.browser.Close()
	}
	p.launcher.Cleanup()
	return err
}
