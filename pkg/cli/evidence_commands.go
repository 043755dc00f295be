package cli

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/DeBrosOfficial/caseledger/pkg/contentstore"
	"github.com/spf13/cobra"
)

// readEvidenceFile loads path with its content type and modification time.
func readEvidenceFile(path string) (contentstore.EvidenceFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return contentstore.EvidenceFile{}, err
	}
	if info.IsDir() {
		return contentstore.EvidenceFile{}, fmt.Errorf("%s is a directory", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return contentstore.EvidenceFile{}, err
	}

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return contentstore.EvidenceFile{
		Name:         filepath.Base(path),
		ContentType:  contentType,
		Data:         data,
		LastModified: info.ModTime(),
	}, nil
}

func newEvidenceCmd(o *rootOptions) *cobra.Command {
	evidenceCmd := &cobra.Command{
		Use:   "evidence",
		Short: "Submit, review and retrieve evidence",
	}

	var description string
	submitCmd := &cobra.Command{
		Use:   "submit <caseId> <file>",
		Short: "Upload a file with its metadata sidecar and record it on the case",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			caseID, err := parseID("case id", args[0])
			if err != nil {
				return err
			}
			file, err := readEvidenceFile(args[1])
			if err != nil {
				return err
			}

			s, err := o.connect(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			res, err := s.Facade.SubmitEvidenceFile(s.ctx, caseID, file, description)
			if err != nil {
				return err
			}
			if o.format == FormatJSON {
				return printJSON(cmd.OutOrStdout(), res)
			}
			out := cmd.OutOrStdout()
			printWrite(out, "Evidence submitted", res.Write)
			fmt.Fprintf(out, "File:   %s (%s, %s)\n", res.Upload.FileCID, file.ContentType, formatBytes(int64(len(file.Data))))
			fmt.Fprintf(out, "Meta:   %s\n", res.Upload.MetadataCID)
			return nil
		},
	}
	submitCmd.Flags().StringVarP(&description, "description", "d", "", "evidence description")

	getCmd := &cobra.Command{
		Use:   "get <caseId> <evidenceId>",
		Short: "Show an evidence item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			caseID, evidenceID, err := parseEvidenceIDs(args)
			if err != nil {
				return err
			}
			s, err := o.open(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			ev, err := s.Facade.GetEvidence(s.ctx, caseID, evidenceID)
			if err != nil {
				return err
			}
			if o.format == FormatJSON {
				return printJSON(cmd.OutOrStdout(), ev)
			}
			printEvidence(cmd.OutOrStdout(), ev)
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list <caseId>",
		Short: "List a case's evidence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			caseID, err := parseID("case id", args[0])
			if err != nil {
				return err
			}
			s, err := o.open(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			items, err := s.Facade.ListEvidence(s.ctx, caseID)
			if err != nil {
				return err
			}
			if o.format == FormatJSON {
				return printJSON(cmd.OutOrStdout(), items)
			}
			printEvidenceList(cmd.OutOrStdout(), items)
			return nil
		},
	}

	var reject bool
	admitCmd := &cobra.Command{
		Use:   "admit <caseId> <evidenceId>",
		Short: "Mark an evidence item admissible, or pending again with --reject (case owner only)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			caseID, evidenceID, err := parseEvidenceIDs(args)
			if err != nil {
				return err
			}
			s, err := o.connect(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			admissible := !reject
			res, err := s.Facade.SetEvidenceAdmissibility(s.ctx, caseID, evidenceID, admissible)
			if err != nil {
				return err
			}
			if o.format == FormatJSON {
				return printJSON(cmd.OutOrStdout(), res)
			}
			printWrite(cmd.OutOrStdout(), fmt.Sprintf("Evidence %d/%d is now %s", caseID, evidenceID, admissibilityLabel(admissible)), res)
			return nil
		},
	}
	admitCmd.Flags().BoolVar(&reject, "reject", false, "clear the admissible flag instead of setting it")

	var outPath string
	resolveCmd := &cobra.Command{
		Use:   "resolve <caseId> <evidenceId>",
		Short: "Follow an evidence item's metadata to its file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			caseID, evidenceID, err := parseEvidenceIDs(args)
			if err != nil {
				return err
			}
			s, err := o.open(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			res, err := s.Facade.ResolveEvidence(s.ctx, caseID, evidenceID)
			if err != nil {
				return err
			}
			if outPath != "" {
				if err := os.WriteFile(outPath, res.Data, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", outPath, err)
				}
			}
			if o.format == FormatJSON {
				return printJSON(cmd.OutOrStdout(), res)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Name:         %s\n", res.Sidecar.Name)
			fmt.Fprintf(out, "Description:  %s\n", res.Sidecar.Description)
			fmt.Fprintf(out, "Type:         %s\n", res.Sidecar.Properties.Type)
			fmt.Fprintf(out, "Size:         %s\n", formatBytes(res.Sidecar.Properties.Size))
			fmt.Fprintf(out, "Added:        %s\n", res.Sidecar.Properties.DateAdded)
			fmt.Fprintf(out, "URL:          %s\n", res.FileURL)
			if outPath != "" {
				fmt.Fprintf(out, "Saved to:     %s\n", outPath)
			}
			return nil
		},
	}
	resolveCmd.Flags().StringVarP(&outPath, "output", "o", "", "write the file contents to this path")

	evidenceCmd.AddCommand(submitCmd, getCmd, listCmd, admitCmd, resolveCmd)
	return evidenceCmd
}

func parseEvidenceIDs(args []string) (uint64, uint64, error) {
	caseID, err := parseID("case id", args[0])
	if err != nil {
		return 0, 0, err
	}
	evidenceID, err := parseID("evidence id", args[1])
	if err != nil {
		return 0, 0, err
	}
	return caseID, evidenceID, nil
}

func newURLCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "url <cid>",
		Short: "Print the gateway URL of a CID or ipfs:// reference",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := contentstore.ParseCID(args[0])
			if err != nil {
				return fmt.Errorf("invalid CID %q: %w", args[0], err)
			}
			s, err := o.open(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			url := s.Content.ResolveURL(c.String())
			if o.format == FormatJSON {
				return printJSON(cmd.OutOrStdout(), map[string]string{"cid": c.String(), "url": url})
			}
			fmt.Fprintln(cmd.OutOrStdout(), url)
			return nil
		},
	}
}
