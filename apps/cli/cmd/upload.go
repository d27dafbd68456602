package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/webtask/packages/webtask"
)

var (
	flagUploadFile        string
	flagUploadContentType string
)

var uploadCmd = &cobra.Command{
	Use:   "upload <method> <url-or-path>",
	Short: "Dispatch an upload task carrying a file as the request body",
	Long: `Dispatch an upload task whose body is read from --file.

Examples:
  webtask upload POST https://api.example.test/blobs --file dump.bin
  webtask upload PUT /v1/items/7 --config webtask.yaml --file item.json --content-type application/json`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(flagUploadFile)
		if err != nil {
			return fmt.Errorf("read upload file: %w", err)
		}

		env, err := buildSession()
		if err != nil {
			return err
		}
		defer env.close()

		out := newPrinter()
		var failed error

		task := webtask.New(env.session, webtask.Upload, webtask.NewRequest(strings.ToUpper(args[0]), args[1]))
		task.Body(data, flagUploadContentType)
		authenticate(task, env.profile)
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
			return fmt.Errorf("upload failed")
		}
		return nil
	},
}

func init() {
	uploadCmd.Flags().StringVarP(&flagUploadFile, "file", "f", "", "file to upload as the request body")
	uploadCmd.Flags().StringVar(&flagUploadContentType, "content-type", "application/octet-stream", "content type of the uploaded body")
	_ = uploadCmd.MarkFlagRequired("file")
}
