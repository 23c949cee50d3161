package cmd

import (
	"encoding/json"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	soap "github.com/merchantcapital/comcorp-idx-connector"
	"github.com/merchantcapital/comcorp-idx-connector/internal/conf"
	"github.com/merchantcapital/comcorp-idx-connector/internal/provider"
)

var envelopeFile string

func verifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify and route a provider envelope read from a file",
		Run: func(cmd *cobra.Command, args []string) {
			execWithConfig(cmd, func(cmd *cobra.Command, config *conf.GlobalConfiguration) {
				router := newComponents(config, logrus.StandardLogger()).router
				if err := verifyFile(router, envelopeFile, cmd.OutOrStdout()); err != nil {
					logrus.WithError(err).Fatal("Verification failed")
				}
			})
		},
	}
	cmd.Flags().StringVarP(&envelopeFile, "file", "f", "", "SOAP envelope")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

type verifyReport struct {
	Accepted  bool             `json:"accepted"`
	Type      string           `json:"message_type"`
	Rejection string           `json:"rejection,omitempty"`
	Reason    string           `json:"reason,omitempty"`
	Trail     []provider.State `json:"trail"`
	Summary   provider.Summary `json:"summary,omitempty"`
}

func verifyFile(router *provider.Router, path string, out io.Writer) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "reading envelope file")
	}
	doc, err := soap.ParseEnvelope(raw)
	if err != nil {
		return errors.Wrap(err, "parsing envelope")
	}

	o := router.Route(doc.Root())
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(verifyReport{
		Accepted:  o.Accepted,
		Type:      o.Type.String(),
		Rejection: string(o.Rejection),
		Reason:    o.Reason,
		Trail:     o.Trail,
		Summary:   o.Summary,
	})
}
