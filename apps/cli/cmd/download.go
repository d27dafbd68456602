package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/webtask/packages/webtask"
)

var flagOutput string

var downloadCmd = &cobra.Command{
	Use:   "download <url-or-path>",
	Short: "Dispatch a download task, saving the payload to a file",
	Long: `Dispatch a download task. The payload is streamed to the session
download directory and moved to --output when given.

Examples:
  webtask download https://example.test/archive.tar.gz -o archive.tar.gz
  webtask download /exports/report.pdf --config webtask.yaml -o report.pdf`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := buildSession()
		if err != nil {
			return err
		}
		defer env.close()

		out := newPrinter()
		var failed error

		task := webtask.New(env.session, webtask.Download, webtask.NewRequest("GET", args[0]))
		authenticate(task, env.profile)
		task.ResponseFile(func(location string, resp *webtask.Response) error {
			if flagOutput != "" {
				if err := os.Rename(location, flagOutput); err != nil {
					return fmt.Errorf("move download: %w", err)
				}
				location = flagOutput
			}
			out.printDownload(location, resp)
			return nil
		})
		task.ResponseError(func(err error) {
			failed = err
			out.printError(err)
		})

		task.ResumeAndWait(waitTimeout())
		if failed != nil {
			return fmt.Errorf("download failed")
		}
		return nil
	},
}

func init() {
	downloadCmd.Flags().StringVarP(&flagOutput, "output", "o", "", "destination path for the downloaded file")
}
