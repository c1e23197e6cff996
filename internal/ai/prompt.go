package ai

import (
	"fmt"
	"strings"

	"github.com/nhle/newsdigest/internal/model"
)

const defaultHeading = "🎯 오늘 챙겨볼 AI 소식 (2-3선)"

// PromptOptions customises the curation prompt.
type PromptOptions struct {
	// Heading is the top-level title the model is told to open with.
	Heading string

	// Language names the output language. "Korean" (the default) is
	// rendered as 한국어 inside the prompt.
	Language string
}

func (o PromptOptions) heading() string {
	if strings.TrimSpace(o.Heading) == "" {
		return defaultHeading
	}
	return o.Heading
}

func (o PromptOptions) language() string {
	switch strings.ToLower(strings.TrimSpace(o.Language)) {
	case "", "korean", "ko", "한국어":
		return "한국어"
	default:
		return o.Language
	}
}

// SystemPrompt sets the model up as a tech news rewriter.
func SystemPrompt(opts PromptOptions) string {
	return fmt.Sprintf("당신은 기술 뉴스를 %s로 쉽고 재미있게 재작성하는 전문가입니다.", opts.language())
}

// FormatArticles numbers the articles the way the prompt presents them.
func FormatArticles(articles []model.Article) string {
	var sb strings.Builder
	for i, a := range articles {
		fmt.Fprintf(&sb, "\n%d. %s\n", i+1, a.Title)
		fmt.Fprintf(&sb, "   요약: %s\n", a.Summary)
		fmt.Fprintf(&sb, "   링크: %s\n", a.Link)
	}
	return sb.String()
}

// BuildPrompt builds the user prompt asking the model to pick the two or
// three most important articles and rewrite them as an engaging digest.
func BuildPrompt(articles []model.Article, opts PromptOptions) string {
	lang := opts.language()

	var sb strings.Builder

	sb.WriteString("다음은 TLDR 뉴스레터에서 추출한 기술 뉴스 기사들입니다 (이미 요약본입니다).\n")
	fmt.Fprintf(&sb, "이 중에서 가장 중요하고 흥미로운 2-3개 기사만 선별하여, %s로 독자의 관심을 유발하는 재미있는 글로 재작성해주세요.\n\n", lang)

	sb.WriteString("원본 기사들:\n")
	sb.WriteString(FormatArticles(articles))
	sb.WriteString("\n")

	sb.WriteString("요구사항:\n")
	fmt.Fprintf(&sb, "1. 총 %d개 기사 중 가장 중요하고 흥미로운 **2-3개만** 선별\n", len(articles))
	fmt.Fprintf(&sb, "2. 선택한 기사를 %s로 **완전히 새로 작성** (단순 번역 금지)\n", lang)
	sb.WriteString("3. 독자의 호기심을 유발하는 흥미진진한 톤으로 작성\n")
	sb.WriteString("   - 예: \"🎉 큰 소식! OpenAI가 또 한 발 앞서갔어요!\"\n")
	sb.WriteString("   - 예: \"🔥 진짜 혁명적인 기술이 나왔다네요!\"\n")
	sb.WriteString("   - 예: \"💡 이거 완전 게임체인저인데요?\"\n")
	sb.WriteString("4. 각 기사마다 제목, 재작성된 핵심 내용, 링크 포함\n")
	sb.WriteString("5. 기술 용어는 일반인도 이해할 수 있게 쉽게 설명\n")
	sb.WriteString("6. 원본이 광고나 후원 게시물이면 제외\n")
	sb.WriteString("7. 각 기사 내용은 **길게 작성** (최소 8-10줄, 200-300자 이상으로 충분히 상세하게 설명)\n\n")

	sb.WriteString("다음 형식으로 작성해주세요:\n\n")
	fmt.Fprintf(&sb, "# %s\n\n", opts.heading())
	sb.WriteString("## [섹션 1] [눈에 띄는 제목 - 이모지 포함]\n")
	sb.WriteString("[독자의 흥미를 유발하는 한 줄 인트로]\n")
	sb.WriteString("[기술 설명 및 핵심 내용을 흥미롭게 재작성]\n")
	sb.WriteString("🔗 [링크 제목](링크 URL)\n\n")
	sb.WriteString("## [섹션 2] [눈에 띄는 제목 - 이모지 포함]\n")
	sb.WriteString("...\n")

	return sb.String()
}
