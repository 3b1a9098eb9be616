package generator

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"mailalias/backend/internal/domain"
)

// Rand 随机源接口，允许测试注入固定种子的实现。
type Rand interface {
	// Intn 返回 [0, n) 内的随机整数。
	Intn(n int) int
}

// lockedRand 对 math/rand 加锁，生成器会被多个请求并发调用。
type lockedRand struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func (r *lockedRand) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Intn(n)
}

// 随机策略参数
const (
	randomTokenLength = 8      // 随机本地部分长度
	randomSuffixMin   = 100    // 数字后缀下限（含）
	randomSuffixMax   = 9999   // 数字后缀上限（含）
	thematicSuffixMin = 10     // 主题策略两位数字后缀下限（含）
	thematicSuffixMax = 99     // 主题策略两位数字后缀上限（含）
	tokenAlphabet     = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// 主题策略词表。词表属于配置而非协议，替换词表不影响地址合法性。
var (
	adjectives = []string{
		"swift", "bright", "clever", "silent", "brave", "calm", "sharp",
		"quick", "wise", "bold", "cool", "fast", "smart", "strong",
	}
	nouns = []string{
		"fox", "wolf", "eagle", "lion", "tiger", "bear", "shark",
		"hawk", "raven", "falcon", "panther", "lynx", "viper", "phoenix",
	}
)

// AliasGenerator 按命名策略生成候选别名地址。
// 生成器只负责语法合法的地址，不访问存储；
// 唯一性由生命周期管理器在写入时通过存储层唯一约束保证。
type AliasGenerator struct {
	rng       Rand
	validator *domain.EmailValidator
}

// NewAliasGenerator 创建别名生成器。
// rng 为 nil 时使用按当前时间播种的内部随机源。
func NewAliasGenerator(rng Rand) *AliasGenerator {
	if rng == nil {
		rng = &lockedRand{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
	}
	return &AliasGenerator{
		rng:       rng,
		validator: domain.NewEmailValidator(),
	}
}

// GenerateRandom 生成随机策略地址。
// 格式: 8位小写字母数字 + 3~4位数字后缀 + @domain。
func (g *AliasGenerator) GenerateRandom(domainName string) string {
	suffix := randomSuffixMin + g.rng.Intn(randomSuffixMax-randomSuffixMin+1)
	return fmt.Sprintf("%s%d@%s", g.randomToken(randomTokenLength), suffix, domainName)
}

// GenerateThematic 生成主题策略地址。
// 格式: theme-形容词-名词 + 两位数字后缀 + @domain。
func (g *AliasGenerator) GenerateThematic(theme, domainName string) string {
	adj := adjectives[g.rng.Intn(len(adjectives))]
	noun := nouns[g.rng.Intn(len(nouns))]
	suffix := thematicSuffixMin + g.rng.Intn(thematicSuffixMax-thematicSuffixMin+1)
	return fmt.Sprintf("%s-%s-%s%d@%s", theme, adj, noun, suffix, domainName)
}

// GenerateSequential 生成顺序策略地址，格式: base{count+1}@domain。
// 生成器不保存计数器，单调性由调用方传入的 count 保证，
// 因此只有调用方维护单调计数时该策略才是幂等的。
func (g *AliasGenerator) GenerateSequential(base, domainName string, count int) string {
	return fmt.Sprintf("%s%d@%s", base, count+1, domainName)
}

// ValidateEmail 校验地址是否符合标准邮箱格式。
// 用于创建/更新时对 destination_email 的防御性检查。
func (g *AliasGenerator) ValidateEmail(address string) bool {
	return g.validator.ValidateEmail(address) == nil
}

// randomToken 生成指定长度的小写字母数字串。
func (g *AliasGenerator) randomToken(length int) string {
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		b.WriteByte(tokenAlphabet[g.rng.Intn(len(tokenAlphabet))])
	}
	return b.String()
}
