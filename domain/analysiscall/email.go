package analysiscall

import (
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"deeptrace-backend-controller/domain/extraction"
	"deeptrace-backend-controller/utils"
	emailutils "deeptrace-backend-controller/utils/email"
)

const analysisEmailHTMLTemplate = `
<h1>线索分析完成</h1>
<p>请求编号：%s</p>
<p>开始时间：%s</p>
<p>耗时：%s</p>
<p>处理线索：%d</p>
<p>分析成功：%d</p>
<p>分析失败：%d</p>
<p>新增实体提及：%d</p>

<h2>失败线索</h2>
<p>%s</p>

<p></p>
<p>更多信息请前往系统查看</p>
`

func sendRunResultEmail(receivers []string, requestID string, result *extraction.RunResult) error {
	err := emailutils.SendHtml(receivers, "【DeepTrace】线索分析完成", renderRunResultPage(requestID, result))
	if err != nil {
		return utils.WrapErrorf(err, "send email to %v fail", receivers)
	}

	return nil
}

func renderRunResultPage(requestID string, result *extraction.RunResult) string {
	failed := "无"
	if len(result.FailedIDs) != 0 {
		ids := make([]string, 0, len(result.FailedIDs))
		for _, id := range result.FailedIDs {
			ids = append(ids, "MAIL_"+strconv.FormatUint(uint64(id), 10))
		}
		failed = strings.Join(ids, "<br/>")
	}

	return fmt.Sprintf(analysisEmailHTMLTemplate,
		html.EscapeString(requestID),
		result.StartTime.Format(time.DateTime),
		result.FinishTime.Sub(result.StartTime).Round(time.Millisecond),
		result.Attempted,
		result.Processed,
		result.Failed,
		result.Mentions,
		failed)
}
