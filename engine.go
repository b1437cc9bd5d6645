package blinx

import (
	"context"

	"pkt.systems/blinx/core"
	"pkt.systems/blinx/internal/cdpsurface"
)

// CDPEngine returns an EngineFunc that drives Chromium over the DevTools
// protocol. The shell fills in the loop, the download sink, the theme and
// the download directory.
func CDPEngine(opts cdpsurface.Options) EngineFunc {
	return func(ctx context.Context, params EngineParams) (Engine, error) {
		opts.Post = params.Post
		opts.Downloads = params.Downloads
		opts.Theme = params.Theme
		if params.DownloadDir != "" {
			opts.DownloadDir = params.DownloadDir
		}
		if opts.Logger == nil {
			opts.Logger = params.Logger
		}
		browser, err := cdpsurface.Start(ctx, opts)
		if err != nil {
			return nil, err
		}
		return cdpEngine{Browser: browser}, nil
	}
}

type cdpEngine struct {
	*cdpsurface.Browser
}

func (e cdpEngine) Window(onClose func()) core.WindowController {
	return e.Browser.Window(onClose)
}
