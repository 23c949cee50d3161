package cmd

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/merchantcapital/comcorp-idx-connector/internal/conf"
	"github.com/merchantcapital/comcorp-idx-connector/internal/consumer"
)

var (
	requestFile  string
	initiatingIP string
)

func submitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a statement download request from a JSON file",
		Run: func(cmd *cobra.Command, args []string) {
			execWithConfig(cmd, func(cmd *cobra.Command, config *conf.GlobalConfiguration) {
				svc := newComponents(config, logrus.StandardLogger()).consumer
				if err := submitFile(cmd.Context(), svc, requestFile, initiatingIP, cmd.OutOrStdout()); err != nil {
					logrus.WithError(err).Fatal("Submit failed")
				}
			})
		},
	}
	cmd.Flags().StringVarP(&requestFile, "file", "f", "", "JSON download request")
	cmd.Flags().StringVar(&initiatingIP, "ip", "127.0.0.1", "initiating IP reported in the SecureX header")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func submitFile(ctx context.Context, svc *consumer.Service, path, ip string, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "reading request file")
	}
	var req consumer.DownloadRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return errors.Wrap(err, "decoding request file")
	}

	res, err := svc.Submit(ctx, req, ip)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
