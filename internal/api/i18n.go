package api

import (
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/mautops/procurement-gin/internal/policy"
)

// DefaultLanguage 默认语言
const DefaultLanguage = "en"

// I18nManager 国际化管理器
type I18nManager struct {
	mu       sync.RWMutex
	messages map[string]map[string]string // lang -> key -> message
}

var defaultI18nManager *I18nManager

func init() {
	defaultI18nManager = NewI18nManager()
	defaultI18nManager.LoadMessages("en", map[string]string{
		"error.invalid_input":           "Invalid input",
		"error.no_valid_items":          "At least one line item with a name and a positive quantity is required",
		"error.vendor_required":         "Please select a vendor",
		"error.project_required":        "Please select a project",
		"error.signature_required":      "Please upload your signature first",
		"error.not_authorized_at_level": "You are not authorized at this approval level",
		"error.not_owner":               "Only the requester can perform this action",
		"error.invalid_transition":      "This action is not allowed in the current status",
		"error.version_conflict":        "The request was modified by someone else, please reload",
		"error.no_changes":              "Nothing to update",
		"error.not_found":               "Resource not found",
		"error.store_failure":           "Internal server error",
		"error.wrong_password":          "The current password is incorrect",
		"error.vendor_not_on_request":   "The vendor is not part of this purchase request",
		"error.bad_request":             "Bad request",
		"error.unauthorized":            "Unauthorized",
		"error.too_many_requests":       "Too many requests",
		"error.route_not_found":         "Route not found",
		"status.draft":                  "Draft",
		"status.rejected":               "Rejected",
		"status.awaiting_head_of_dept":  "Awaiting head of department",
		"status.awaiting_manager":       "Awaiting manager",
		"status.fully_approved":         "Fully approved",
		"success.created":               "Created successfully",
		"success.deleted":               "Deleted successfully",
	})
	defaultI18nManager.LoadMessages("th", map[string]string{
		"error.invalid_input":           "ข้อมูลไม่ถูกต้อง",
		"error.no_valid_items":          "ต้องมีรายการที่มีชื่อและจำนวนมากกว่าศูนย์อย่างน้อยหนึ่งรายการ",
		"error.vendor_required":         "กรุณาเลือกผู้ขาย",
		"error.project_required":        "กรุณาเลือกโครงการ",
		"error.signature_required":      "กรุณาอัปโหลดลายเซ็นก่อน",
		"error.not_authorized_at_level": "คุณไม่มีสิทธิ์อนุมัติในขั้นนี้",
		"error.not_owner":               "เฉพาะผู้ขอซื้อเท่านั้นที่ดำเนินการได้",
		"error.invalid_transition":      "ไม่สามารถดำเนินการในสถานะปัจจุบันได้",
		"error.version_conflict":        "ใบขอซื้อถูกแก้ไขโดยผู้อื่น กรุณาโหลดใหม่",
		"error.no_changes":              "ไม่มีข้อมูลที่เปลี่ยนแปลง",
		"error.not_found":               "ไม่พบข้อมูล",
		"error.store_failure":           "เกิดข้อผิดพลาดภายในระบบ",
		"error.wrong_password":          "รหัสผ่านปัจจุบันไม่ถูกต้อง",
		"error.vendor_not_on_request":   "ผู้ขายนี้ไม่อยู่ในใบขอซื้อ",
		"error.bad_request":             "คำขอไม่ถูกต้อง",
		"error.unauthorized":            "กรุณาเข้าสู่ระบบ",
		"error.too_many_requests":       "มีคำขอมากเกินไป",
		"error.route_not_found":         "ไม่พบเส้นทางที่ร้องขอ",
		"status.draft":                  "ฉบับร่าง",
		"status.rejected":               "ถูกปฏิเสธ",
		"status.awaiting_head_of_dept":  "รอหัวหน้าแผนกอนุมัติ",
		"status.awaiting_manager":       "รอผู้จัดการอนุมัติ",
		"status.fully_approved":         "อนุมัติแล้ว",
		"success.created":               "สร้างสำเร็จ",
		"success.deleted":               "ลบสำเร็จ",
	})
}

// NewI18nManager 创建国际化管理器
func NewI18nManager() *I18nManager {
	return &I18nManager{
		messages: make(map[string]map[string]string),
	}
}

// LoadMessages 加载语言消息, 与已有消息合并
func (m *I18nManager) LoadMessages(lang string, messages map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.messages[lang] == nil {
		m.messages[lang] = make(map[string]string, len(messages))
	}
	for k, v := range messages {
		m.messages[lang][k] = v
	}
}

// Translate 翻译消息, 找不到时回退到默认语言, 仍找不到返回 key
func (m *I18nManager) Translate(lang, key string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if message, ok := m.messages[lang][key]; ok {
		return message
	}
	if message, ok := m.messages[DefaultLanguage][key]; ok {
		return message
	}
	return key
}

// Supports 是否支持该语言
func (m *I18nManager) Supports(lang string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.messages[lang]
	return ok
}

// I18nMiddleware 国际化中间件, 查询参数 lang 优先于 Accept-Language
func I18nMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		lang := DefaultLanguage
		if queryLang := c.Query("lang"); queryLang != "" {
			lang = normalizeLanguage(queryLang)
		} else if headerLang := c.GetHeader("Accept-Language"); headerLang != "" {
			lang = parseAcceptLanguage(headerLang)
		}
		if !defaultI18nManager.Supports(lang) {
			lang = DefaultLanguage
		}

		c.Set("language", lang)
		c.Next()
	}
}

// GetLanguage 从上下文获取语言
func GetLanguage(c *gin.Context) string {
	if lang, ok := c.Get("language"); ok {
		if l, ok := lang.(string); ok {
			return l
		}
	}
	return DefaultLanguage
}

// T 翻译消息(使用默认管理器)
func T(c *gin.Context, key string) string {
	return defaultI18nManager.Translate(GetLanguage(c), key)
}

// localizeLabel 按请求语言填充状态标签文本
func localizeLabel(c *gin.Context, l *policy.Label) {
	if l != nil && l.Key != "" {
		l.Text = T(c, l.Key)
	}
}

// normalizeLanguage 规范化语言代码, th-TH -> th, en-US -> en
func normalizeLanguage(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if idx := strings.IndexAny(lang, "-_"); idx != -1 {
		lang = lang[:idx]
	}
	return lang
}

// parseAcceptLanguage 解析 Accept-Language 头
// 例如 th-TH,th;q=0.9,en;q=0.8, 取第一个支持的语言
func parseAcceptLanguage(header string) string {
	for _, part := range strings.Split(header, ",") {
		lang := strings.TrimSpace(part)
		if idx := strings.Index(lang, ";"); idx != -1 {
			lang = lang[:idx]
		}
		lang = normalizeLanguage(lang)
		if defaultI18nManager.Supports(lang) {
			return lang
		}
	}
	return DefaultLanguage
}
