package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/webtask/packages/webtask"
)

// watchDebounceDelay coalesces bursts of file events into one re-send.
const watchDebounceDelay = 300 * time.Millisecond

var (
	flagHeaders  []string
	flagQuery    []string
	flagBody     string
	flagBodyFile string
	flagJSON     bool
	flagSOAP     bool
	flagWatch    bool
)

var sendCmd = &cobra.Command{
	Use:   "send <method> <url-or-path>",
	Short: "Dispatch a fetch task and print the response",
	Long: `Dispatch one HTTP exchange and print the response once every
handler has run.

Examples:
  webtask send GET https://api.example.test/items
  webtask send POST /v1/items --config webtask.yaml --profile staging --body '{"a":1}' --json
  webtask send POST https://api.example.test/soap --body '<Ping/>' --soap
  webtask send GET https://api.example.test/items --body-file req.json --json --watch`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagWatch {
			if flagBodyFile == "" {
				return fmt.Errorf("--watch requires --body-file")
			}
			return watchAndSend(args[0], args[1])
		}
		return sendOnce(args[0], args[1])
	},
}

func init() {
	sendCmd.Flags().StringArrayVarP(&flagHeaders, "header", "H", nil, "request header as key=value (repeatable)")
	sendCmd.Flags().StringArrayVarP(&flagQuery, "query", "q", nil, "query parameter as key=value (repeatable)")
	sendCmd.Flags().StringVarP(&flagBody, "body", "d", "", "raw request body")
	sendCmd.Flags().StringVar(&flagBodyFile, "body-file", "", "read the request body from a file")
	sendCmd.Flags().BoolVar(&flagJSON, "json", false, "send the body as application/json")
	sendCmd.Flags().BoolVar(&flagSOAP, "soap", false, "wrap the body in a SOAP envelope")
	sendCmd.Flags().BoolVarP(&flagWatch, "watch", "w", false, "re-send whenever the body file changes")
}

func sendOnce(method, path string) error {
	env, err := buildSession()
	if err != nil {
		return err
	}
	defer env.close()
	return dispatchSend(env, method, path)
}

func dispatchSend(env *sessionEnv, method, path string) error {
	headers, err := parsePairs(flagHeaders)
	if err != nil {
		return err
	}
	query, err := parsePairs(flagQuery)
	if err != nil {
		return err
	}

	body := flagBody
	if flagBodyFile != "" {
		data, err := os.ReadFile(flagBodyFile)
		if err != nil {
			return fmt.Errorf("read body file: %w", err)
		}
		body = string(data)
	}

	task := webtask.New(env.session, webtask.Fetch, webtask.NewRequest(strings.ToUpper(method), path))
	task.Headers(headers).QueryParams(query)
	authenticate(task, env.profile)

	switch {
	case flagSOAP:
		task.SOAPBody(body)
	case flagJSON && body != "":
		task.Body([]byte(body), "application/json")
	case body != "":
		task.Body([]byte(body), "")
	}

	out := newPrinter()
	var failed error
	task.Response(func(payload []byte, resp *webtask.Response) error {
		out.printResponse(resp)
		return nil
	})
	task.ResponseError(func(err error) {
		failed = err
		out.printError(err)
	})

	task.ResumeAndWait(waitTimeout())
	if failed != nil {
		return fmt.Errorf("exchange failed")
	}
	return nil
}

// watchAndSend re-dispatches the request whenever the body file is
// written, debouncing bursts of events.
func watchAndSend(method, path string) error {
	env, err := buildSession()
	if err != nil {
		return err
	}
	defer env.close()

	if err := dispatchSend(env, method, path); err != nil {
		newPrinter().printError(err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(flagBodyFile)); err != nil {
		return fmt.Errorf("watch %s: %w", flagBodyFile, err)
	}

	fmt.Printf("watching %s, press Ctrl+C to stop\n", flagBodyFile)

	var debounce *time.Timer
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) || filepath.Clean(event.Name) != filepath.Clean(flagBodyFile) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(watchDebounceDelay, func() {
				if err := dispatchSend(env, method, path); err != nil {
					newPrinter().printError(err)
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			newPrinter().printError(err)
		}
	}
}
