// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package generator turns store details into a self-contained HTML page
// by prompting the active LLM provider. It also hosts the smaller copy
// helpers used by the site form (about text, content suggestions).
package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"storefront/internal/ai"
	"storefront/internal/metrics"
	"storefront/internal/models"
)

var (
	// ErrEmptyOutput is returned when the provider answers with no usable content.
	ErrEmptyOutput = errors.New("generator: model returned no content")

	// ErrIncompleteOutput is returned when the answer was cut off, either
	// at the provider's token limit or as a JSON object that does not parse.
	ErrIncompleteOutput = errors.New("generator: model returned an incomplete answer")
)

// FlaggedError is returned when the moderation check rejects the input.
type FlaggedError struct {
	Categories []string
}

func (e *FlaggedError) Error() string {
	return fmt.Sprintf("generator: input flagged for %s", strings.Join(e.Categories, ", "))
}

// Message is the user-facing explanation shown next to the form.
func (e *FlaggedError) Message() string {
	return fmt.Sprintf(
		"Your input was flagged for: %s. Please reformulate it and try again.",
		strings.Join(e.Categories, ", "),
	)
}

// Completer is the subset of *ai.Registry the generator needs.
type Completer interface {
	Complete(ctx context.Context, req ai.Request) (string, error)
	CheckPrompt(ctx context.Context, text string) (*ai.ModerationResult, error)
}

// Input holds the validated store details sent to the model.
type Input struct {
	StoreName   string
	Tagline     string
	About       string
	Products    []models.Product
	ContactInfo string
	SocialLinks string
	StoreHours  string
	HeaderImage string
}

// Generator produces storefront pages and copy through an LLM.
type Generator struct {
	llm Completer
}

// New creates a Generator backed by the given completer.
func New(llm Completer) *Generator {
	return &Generator{llm: llm}
}

const (
	headerToken = "{{HEADER_IMAGE}}"

	// moderationLimit caps the text sent to the moderation endpoint.
	moderationLimit = 4000

	aboutMaxTokens   = 400
	improveMaxTokens = 1500
)

const websiteSystemPrompt = `You are an expert web designer who generates HTML and CSS for small business websites.

Based on the provided store details, generate a clean, well-structured, modern and responsive single-page website.

CRITICAL RULES:
1. Respond with a JSON object with exactly two string fields: "htmlContent" and "cssStyling".
2. "htmlContent" is a complete HTML document (<!DOCTYPE html>, <html>, <head>, <body>).
3. "cssStyling" holds all CSS. Do not link external stylesheets or scripts.
4. Sections: hero with store name and tagline, about, products, hours, contact, social links, footer.
5. Image placeholders such as {{HEADER_IMAGE}} or {{PRODUCT_IMAGE_1}} must be used verbatim as the src attribute of <img> tags. Never invent image URLs.
6. Do not add explanations or markdown code fences.`

// productToken returns the placeholder for the n-th product image (1-based).
func productToken(n int) string {
	return "{{PRODUCT_IMAGE_" + strconv.Itoa(n) + "}}"
}

// buildWebsitePrompt renders the store details. Image references are
// replaced by placeholder tokens so inline data never reaches the model.
func buildWebsitePrompt(in Input) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Store Name: %s\n", in.StoreName)
	if in.Tagline != "" {
		fmt.Fprintf(&sb, "Tagline: %s\n", in.Tagline)
	}
	fmt.Fprintf(&sb, "About: %s\n", in.About)

	sb.WriteString("Product List:\n")
	for i, p := range in.Products {
		fmt.Fprintf(&sb, "%d. %s - %s", i+1, p.Name, p.Price)
		if p.Image != "" {
			fmt.Fprintf(&sb, " (image: %s)", productToken(i+1))
		}
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "Contact Info: %s\n", in.ContactInfo)
	if in.SocialLinks != "" {
		fmt.Fprintf(&sb, "Social Links: %s\n", in.SocialLinks)
	}
	if in.StoreHours != "" {
		fmt.Fprintf(&sb, "Store Hours: %s\n", in.StoreHours)
	}
	if in.HeaderImage != "" {
		fmt.Fprintf(&sb, "Header Image: %s (use it as the hero background or banner)\n", headerToken)
	}
	return sb.String()
}

// moderationText is the user-authored part of the input, without images.
func moderationText(in Input) string {
	parts := []string{in.StoreName, in.Tagline, in.About, in.ContactInfo, in.SocialLinks, in.StoreHours}
	for _, p := range in.Products {
		parts = append(parts, p.Name, p.Price)
	}
	return truncate(strings.Join(parts, "\n"), moderationLimit)
}

// Website generates the HTML document for a store. It never returns a
// partial document: any provider failure, cut-off or empty answer is an
// error.
func (g *Generator) Website(ctx context.Context, in Input) (string, error) {
	start := time.Now()

	if err := g.checkSafety(ctx, moderationText(in)); err != nil {
		metrics.ObserveGeneration(metrics.KindWebsite, metrics.OutcomeFlagged, start)
		return "", err
	}

	raw, err := g.llm.Complete(ctx, ai.Request{
		System: websiteSystemPrompt,
		Prompt: buildWebsitePrompt(in),
		JSON:   true,
	})
	if err != nil {
		return "", failed(metrics.KindWebsite, "generate website", start, err)
	}

	doc, err := assembleDocument(raw, in.StoreName)
	if err != nil {
		metrics.ObserveGeneration(metrics.KindWebsite, metrics.OutcomeIncomplete, start)
		return "", fmt.Errorf("generate website: %w", err)
	}
	if doc == "" {
		metrics.ObserveGeneration(metrics.KindWebsite, metrics.OutcomeEmpty, start)
		return "", ErrEmptyOutput
	}

	metrics.ObserveGeneration(metrics.KindWebsite, metrics.OutcomeOK, start)
	return substituteImages(doc, in), nil
}

// websiteOutput is the JSON shape the model is asked for.
type websiteOutput struct {
	HTMLContent string `json:"htmlContent"`
	CSSStyling  string `json:"cssStyling"`
}

// assembleDocument normalises a model response into one HTML document.
// It accepts the JSON object form, bare HTML and HTML fragments.
// Returns "" when there is no HTML to keep, and ErrIncompleteOutput for
// a JSON object that does not parse.
func assembleDocument(raw, title string) (string, error) {
	body := extractFenced(raw)
	var css string

	if strings.HasPrefix(body, "{") {
		var out websiteOutput
		if err := json.Unmarshal([]byte(body), &out); err != nil {
			return "", fmt.Errorf("%w: %v", ErrIncompleteOutput, err)
		}
		body = extractFenced(out.HTMLContent)
		css = strings.TrimSpace(out.CSSStyling)
	}

	if body == "" {
		return "", nil
	}
	if !strings.Contains(strings.ToLower(body), "<html") {
		body = wrapFragment(body, title)
	}
	if css != "" {
		body = injectCSS(body, css)
	}
	return body, nil
}

// extractFenced strips markdown code fences (```html ... ```) around a response.
func extractFenced(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if nl := strings.Index(s, "\n"); nl != -1 {
			s = s[nl+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
	}
	return strings.TrimSpace(s)
}

func wrapFragment(fragment, title string) string {
	return "<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n" +
		"<meta charset=\"utf-8\">\n" +
		"<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">\n" +
		"<title>" + html.EscapeString(title) + "</title>\n" +
		"</head>\n<body>\n" + fragment + "\n</body>\n</html>"
}

// injectCSS places a <style> block at the end of <head>, or at the top
// of the document when the model omitted the head element.
func injectCSS(doc, css string) string {
	style := "<style>\n" + css + "\n</style>\n"
	if idx := strings.Index(strings.ToLower(doc), "</head>"); idx != -1 {
		return doc[:idx] + style + doc[idx:]
	}
	return style + doc
}

var imageToken = regexp.MustCompile(`\{\{\s*(HEADER_IMAGE|PRODUCT_IMAGE_(\d+))\s*\}\}`)

// substituteImages swaps placeholder tokens for the real image
// references. Tokens without a matching image are removed.
func substituteImages(doc string, in Input) string {
	return imageToken.ReplaceAllStringFunc(doc, func(tok string) string {
		m := imageToken.FindStringSubmatch(tok)
		if m[1] == "HEADER_IMAGE" {
			return html.EscapeString(in.HeaderImage)
		}
		n, err := strconv.Atoi(m[2])
		if err != nil || n < 1 || n > len(in.Products) {
			return ""
		}
		return html.EscapeString(in.Products[n-1].Image)
	})
}

// AboutText drafts a 2-4 sentence "About us" paragraph for a store.
func (g *Generator) AboutText(ctx context.Context, storeName, tagline string) (string, error) {
	start := time.Now()

	if err := g.checkSafety(ctx, storeName+"\n"+tagline); err != nil {
		metrics.ObserveGeneration(metrics.KindAbout, metrics.OutcomeFlagged, start)
		return "", err
	}

	prompt := "Store Name: " + storeName
	if tagline != "" {
		prompt += "\nTagline: " + tagline
	}

	text, err := g.llm.Complete(ctx, ai.Request{
		System: `You are an expert copywriter specializing in compelling brand stories.
Write an engaging "About Us" section for the store. It must be 2-4 sentences long, professional and inviting.
Output ONLY the text, without quotes, headings or markdown.`,
		Prompt:    prompt,
		MaxTokens: aboutMaxTokens,
	})
	if err != nil {
		return "", failed(metrics.KindAbout, "generate about text", start, err)
	}

	text = strings.Trim(extractFenced(text), "\"' \n")
	if text == "" {
		metrics.ObserveGeneration(metrics.KindAbout, metrics.OutcomeEmpty, start)
		return "", ErrEmptyOutput
	}
	metrics.ObserveGeneration(metrics.KindAbout, metrics.OutcomeOK, start)
	return text, nil
}

// ImproveContent returns markdown suggestions for making website copy
// clearer and more persuasive.
func (g *Generator) ImproveContent(ctx context.Context, content string) (string, error) {
	start := time.Now()

	if err := g.checkSafety(ctx, truncate(content, moderationLimit)); err != nil {
		metrics.ObserveGeneration(metrics.KindImprove, metrics.OutcomeFlagged, start)
		return "", err
	}

	text, err := g.llm.Complete(ctx, ai.Request{
		System: `You are an expert in website content optimization.
Review the website content and suggest improvements to its quality and engagement.
Focus on clarity, readability and persuasiveness. Give specific examples of rephrased sentences or added details.
Answer in Markdown using short sections and bullet lists. Do not wrap the output in code fences.`,
		Prompt:    "Website Content:\n" + content,
		MaxTokens: improveMaxTokens,
	})
	if err != nil {
		return "", failed(metrics.KindImprove, "improve content", start, err)
	}

	text = extractFenced(text)
	if text == "" {
		metrics.ObserveGeneration(metrics.KindImprove, metrics.OutcomeEmpty, start)
		return "", ErrEmptyOutput
	}
	metrics.ObserveGeneration(metrics.KindImprove, metrics.OutcomeOK, start)
	return text, nil
}

// checkSafety runs text through moderation. A moderation outage lets the
// text through; providers still apply their own filters.
func (g *Generator) checkSafety(ctx context.Context, text string) error {
	result, err := g.llm.CheckPrompt(ctx, text)
	if err != nil {
		slog.Warn("moderation check failed, allowing prompt", "error", err)
		return nil
	}
	if result == nil || result.Safe {
		return nil
	}
	slog.Warn("prompt flagged by moderation", "categories", strings.Join(result.Categories, ", "))
	return &FlaggedError{Categories: result.Categories}
}

// failed records a provider failure and wraps it for the caller. Answers
// cut off at the token limit are reported as ErrIncompleteOutput.
func failed(kind, op string, start time.Time, err error) error {
	if errors.Is(err, ai.ErrTruncated) {
		metrics.ObserveGeneration(kind, metrics.OutcomeIncomplete, start)
		return fmt.Errorf("%s: %w: %w", op, ErrIncompleteOutput, err)
	}
	metrics.ObserveGeneration(kind, metrics.OutcomeError, start)
	return fmt.Errorf("%s: %w", op, err)
}

// truncate cuts a string to at most maxLen bytes without splitting a
// UTF-8 sequence, appending "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
