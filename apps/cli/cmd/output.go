package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"github.com/abdul-hamid-achik/webtask/packages/webtask"
)

type printer struct {
	writer  io.Writer
	noColor bool
}

func newPrinter() *printer {
	return &printer{writer: os.Stdout, noColor: flagNoColor}
}

func (p *printer) statusColor(code int) *color.Color {
	var c *color.Color
	switch {
	case code >= 200 && code < 300:
		c = color.New(color.FgGreen)
	case code >= 300 && code < 400:
		c = color.New(color.FgYellow)
	default:
		c = color.New(color.FgRed)
	}
	if p.noColor {
		c.DisableColor()
	}
	return c
}

func (p *printer) printResponse(resp *webtask.Response) {
	p.statusColor(resp.StatusCode).Fprintf(p.writer, "%s\n", resp.Status)
	for k, v := range resp.Headers {
		fmt.Fprintf(p.writer, "%s: %s\n", k, v)
	}
	if len(resp.Body) > 0 {
		fmt.Fprintf(p.writer, "\n%s\n", resp.BodyString())
	}
}

func (p *printer) printError(err error) {
	c := color.New(color.FgRed, color.Bold)
	if p.noColor {
		c.DisableColor()
	}
	c.Fprintf(os.Stderr, "error: %v\n", err)
}

func (p *printer) printDownload(location string, resp *webtask.Response) {
	p.statusColor(resp.StatusCode).Fprintf(p.writer, "%s\n", resp.Status)
	fmt.Fprintf(p.writer, "saved to %s\n", location)
}
