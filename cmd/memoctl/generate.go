package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"creditmemo-backend/internal/bootstrap"
	"creditmemo-backend/internal/extract"
	"creditmemo-backend/internal/library"
	"creditmemo-backend/internal/llm"
	"creditmemo-backend/internal/shared/config"
	"creditmemo-backend/memo/render"
)

func generateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate [pdf]",
		Short: "Extract a statement PDF and write a credit memo DOCX",
		Args:  cobra.ExactArgs(1),
		RunE:  runGenerate,
	}
	cmd.Flags().StringP("provider", "p", "", "LLM provider (defaults to the configured default)")
	cmd.Flags().StringP("company", "c", "", "Company name placed on the memo")
	cmd.Flags().StringP("methodology", "m", "", "Methodology file (txt, md, yaml, pdf or docx); built-in when empty")
	cmd.Flags().String("format", "", "DOCX memo format template containing {{MEMO_BODY}}")
	cmd.Flags().StringP("out", "o", "", "Output DOCX path (defaults to the memo file name)")
	return cmd
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	providerName, _ := cmd.Flags().GetString("provider")
	company, _ := cmd.Flags().GetString("company")
	methodologyPath, _ := cmd.Flags().GetString("methodology")
	formatPath, _ := cmd.Flags().GetString("format")
	outPath, _ := cmd.Flags().GetString("out")

	router, err := loadRouter(ctx)
	if err != nil {
		return err
	}
	provider, err := router.Resolve(providerName)
	if err != nil {
		return err
	}
	methodology, err := loadMethodology(ctx, methodologyPath)
	if err != nil {
		return err
	}
	var template []byte
	if formatPath != "" {
		if template, err = os.ReadFile(formatPath); err != nil {
			return fmt.Errorf("read format: %w", err)
		}
	}

	bar := stepBar(3, "extracting")
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}
	result, err := extract.PDFExtractor{}.Extract(ctx, data)
	if err != nil {
		return err
	}
	if strings.TrimSpace(company) == "" {
		company = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
	}

	_ = bar.Add(1)
	bar.Describe(color.BlueString("generating with %s", provider))
	memo, err := router.GenerateMemo(ctx, llm.MemoInput{
		Provider:     provider,
		CompanyName:  company,
		DocumentText: result.Text,
		Methodology:  methodology,
		Financials:   result.Financials,
	})
	if err != nil {
		return err
	}

	_ = bar.Add(1)
	bar.Describe(color.BlueString("rendering"))
	now := time.Now()
	docx, err := render.Render(render.Input{
		CompanyName: company,
		Provider:    memo.Provider,
		Model:       memo.Model,
		Date:        now,
		Body:        memo.Content,
	}, template)
	if err != nil {
		return err
	}
	if outPath == "" {
		outPath = render.FileName(company, now)
	}
	if err := os.WriteFile(outPath, docx, 0o644); err != nil {
		return fmt.Errorf("write memo: %w", err)
	}
	_ = bar.Finish()

	color.Green("\n✓ wrote %s (%s, years %v)", outPath, provider, result.Financials.Years())
	return nil
}

// loadMethodology returns the guidance text from path, or the built-in
// methodology when path is empty.
func loadMethodology(ctx context.Context, path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		m, err := library.DefaultMethodology()
		if err != nil {
			return "", err
		}
		return m.Text(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read methodology: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".txt", ".md", ".markdown":
		return string(data), nil
	default:
		return extract.Text(ctx, data, "", filepath.Base(path))
	}
}

func loadRouter(ctx context.Context) (*llm.Router, error) {
	cfg := config.Load()
	if ctx == nil {
		ctx = context.Background()
	}
	return bootstrap.BuildLLM(ctx, cfg)
}

func stepBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)
}
