package notifier

import (
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"AlphaPulse/internal/model"
	"AlphaPulse/internal/watchlist"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

const newsTimeLayout = "2006-01-02 15:04"

// InputHint is shown whenever a symbol is missing or blank.
const InputHint = "輸入代碼 (例如 2330)"

var hundredMillion = decimal.NewFromInt(100_000_000)

// FormatAnalysis renders a full analysis report as Telegram HTML.
func FormatAnalysis(res model.AnalysisResult) string {
	sym := html.EscapeString(res.Symbol)
	switch res.Status {
	case model.StatusInvalid:
		return "⚠️ " + InputHint
	case model.StatusNotFound:
		return fmt.Sprintf("❌ <b>查無資料</b>\n請確認代碼: <code>%s</code>", sym)
	case model.StatusUnavailable:
		return fmt.Sprintf("⚠️ 資料來源暫時無法使用，請稍後再試 (<code>%s</code>)", sym)
	}

	var b strings.Builder
	name := res.Symbol
	if res.Fundamentals != nil {
		name = res.Fundamentals.DisplayName()
	}
	if name != res.Symbol {
		fmt.Fprintf(&b, "📊 <b>%s</b> (%s) %s\n", html.EscapeString(name), sym, watchMark(res.Watched))
	} else {
		fmt.Fprintf(&b, "📊 <b>%s</b> %s\n", sym, watchMark(res.Watched))
	}
	if q := res.Quote; q != nil {
		fmt.Fprintf(&b, "%s %s", trendMark(*q), price(q.Price))
		if q.Currency != "" {
			fmt.Fprintf(&b, " %s", html.EscapeString(q.Currency))
		}
		fmt.Fprintf(&b, "  %s\n", FormatChange(*q))
	}

	b.WriteString("\n🏢 <b>基本面</b>\n")
	if f := res.Fundamentals; f != nil {
		writeFundamentals(&b, *f)
	} else {
		b.WriteString("暫無資料\n")
	}

	if tech := res.Technicals; tech != nil {
		b.WriteString("\n📈 <b>技術面</b>\n")
		writeTechnicals(&b, *tech)
	}

	b.WriteString("\n📰 <b>新聞</b>\n")
	if len(res.News) == 0 {
		b.WriteString("暫無相關新聞\n")
	}
	for i, n := range res.News {
		title := html.EscapeString(n.Title)
		if n.Link != "" {
			title = fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(n.Link), title)
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, title)
		meta := make([]string, 0, 2)
		if n.Publisher != "" {
			meta = append(meta, html.EscapeString(n.Publisher))
		}
		if !n.PublishedAt.IsZero() {
			meta = append(meta, n.PublishedAt.Format(newsTimeLayout))
		}
		if len(meta) > 0 {
			fmt.Fprintf(&b, "   <i>%s</i>\n", strings.Join(meta, " · "))
		}
	}

	if !res.HasChart() {
		b.WriteString("\n🕯 K線圖暫無資料\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func watchMark(watched bool) string {
	if watched {
		return "⭐"
	}
	return "☆"
}

// FormatChartCaption is the caption attached to the chart photo.
func FormatChartCaption(res model.AnalysisResult) string {
	return fmt.Sprintf("🕯 <b>%s</b> K線圖 · MA5 / MA20 / MA60", html.EscapeString(res.Symbol))
}

func writeFundamentals(b *strings.Builder, f model.Fundamentals) {
	fmt.Fprintf(b, "最高: %s | 最低: %s\n", optPrice(f.DayHigh), optPrice(f.DayLow))
	vol := "N/A"
	if f.Volume != nil {
		vol = humanize.Comma(*f.Volume)
	}
	fmt.Fprintf(b, "成交量: %s\n", vol)
	fmt.Fprintf(b, "本益比: %s | EPS: %s\n", optPrice(f.PE), optPrice(f.EPS))
	fmt.Fprintf(b, "市值: %s\n", FormatMarketCap(f.MarketCap))
	sector := "N/A"
	if f.Sector != nil && *f.Sector != "" {
		sector = html.EscapeString(*f.Sector)
	}
	fmt.Fprintf(b, "產業: %s\n", sector)
}

func writeTechnicals(b *strings.Builder, t model.Technicals) {
	fmt.Fprintf(b, "MA5: %s | MA20: %s | MA60: %s\n", optPrice(t.MA5), optPrice(t.MA20), optPrice(t.MA60))
	fmt.Fprintf(b, "RSI14: %s\n", decimal.NewFromFloat(t.RSI14).StringFixed(1))
	fmt.Fprintf(b, "區間: %s ~ %s (位置 %s%%)\n",
		price(t.PeriodLow), price(t.PeriodHigh),
		decimal.NewFromFloat(t.RangePosition*100).StringFixed(0))
}

// FormatChange renders "+5.00 (+0.87%)"; the percent is N/A when the
// previous close was zero.
func FormatChange(q model.Quote) string {
	pct := "N/A"
	if q.ChangePct != nil {
		pct = signed(*q.ChangePct) + "%"
	}
	return fmt.Sprintf("%s (%s)", signed(q.Change), pct)
}

// FormatMarketCap renders a market cap in units of 億 (1e8) with one decimal.
func FormatMarketCap(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return decimal.NewFromFloat(*v).Div(hundredMillion).StringFixed(1) + "億"
}

// FormatQuoteLine renders one watchlist row.
func FormatQuoteLine(q model.Quote) string {
	return fmt.Sprintf("%s <b>%s</b> %s %s",
		trendMark(q), html.EscapeString(q.Symbol), price(q.Price), FormatChange(q))
}

// FormatWatchlist renders refreshed watchlist quotes. tracked is the number
// of symbols on the list; any difference from len(quotes) was omitted.
func FormatWatchlist(quotes []model.Quote, tracked int, at time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📋 <b>監控清單</b> | %s\n\n", at.Format(newsTimeLayout))
	if tracked == 0 {
		b.WriteString("清單是空的，使用 /add 代碼 加入")
		return b.String()
	}
	for _, q := range quotes {
		b.WriteString(FormatQuoteLine(q))
		b.WriteByte('\n')
	}
	if omitted := tracked - len(quotes); omitted > 0 {
		fmt.Fprintf(&b, "\n(%d 檔暫無報價)", omitted)
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatMutation confirms a watchlist change.
func FormatMutation(symbol string, out watchlist.Outcome) string {
	sym := html.EscapeString(symbol)
	switch out {
	case watchlist.Added:
		return fmt.Sprintf("⭐ 已加入監控: <b>%s</b>", sym)
	case watchlist.AlreadyPresent:
		return fmt.Sprintf("ℹ️ <b>%s</b> 已在監控清單", sym)
	case watchlist.Removed:
		return fmt.Sprintf("🗑 已移除監控: <b>%s</b>", sym)
	case watchlist.NotPresent:
		return fmt.Sprintf("ℹ️ <b>%s</b> 不在監控清單", sym)
	}
	return sym
}

// FormatError maps an operation error to a user-facing message.
func FormatError(err error) string {
	switch {
	case errors.Is(err, model.ErrInvalidSymbol):
		return "⚠️ " + InputHint
	case errors.Is(err, model.ErrStorage):
		return "❌ 監控清單儲存失敗，請稍後再試"
	case errors.Is(err, model.ErrProviderUnavailable):
		return "⚠️ 資料來源暫時無法使用，請稍後再試"
	}
	return "❌ 操作失敗"
}

// FormatHelp lists the supported commands.
func FormatHelp() string {
	return strings.Join([]string{
		"🤖 <b>AlphaPulse 指令</b>",
		"",
		"<code>2330</code> 或 /q 代碼 - 分析 (K線圖, 基本面, 新聞)",
		"/fav - 將上一次分析的代碼加入或移出監控",
		"/add 代碼 - 加入監控",
		"/rm 代碼 - 移除監控",
		"/list - 監控清單報價",
		"/help - 顯示說明",
	}, "\n")
}

func trendMark(q model.Quote) string {
	switch {
	case q.Change > 0:
		return "🔴"
	case q.Change < 0:
		return "🟢"
	}
	return "⚪"
}

func price(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

func optPrice(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return price(*v)
}

func signed(v float64) string {
	d := decimal.NewFromFloat(v).Round(2)
	s := d.StringFixed(2)
	if d.Sign() >= 0 {
		return "+" + s
	}
	return s
}
