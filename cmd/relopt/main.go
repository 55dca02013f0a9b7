package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/kasuganosora/relopt/pkg/config"
	"github.com/kasuganosora/relopt/pkg/logging"
	"github.com/kasuganosora/relopt/pkg/optimizer"
	"github.com/kasuganosora/relopt/pkg/optimizer/rel"
	"github.com/kasuganosora/relopt/pkg/statistics"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径（json 或 yaml），为空时按默认位置查找")
	joinHints := flag.String("join-hints", "", "连接上的 hint，例如 NO_HASH_JOIN 或 MERGE_JOIN(EMP,DEPT)，多个用 ; 分隔")
	scanHints := flag.String("scan-hints", "", "EMP 扫描上的 hint，例如 USE_INDEX(EMPNO)")
	sorted := flag.Bool("sorted", false, "要求结果按 EMP.DEPTNO 排序")
	flag.Parse()

	var cfg *config.Config
	if *configPath != "" {
		c, err := config.LoadConfig(*configPath)
		if err != nil {
			log.Fatal("加载配置失败:", err)
		}
		cfg = c
	} else {
		cfg = config.LoadConfigOrDefault()
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		log.Fatal("创建日志失败:", err)
	}
	defer logger.Sync()

	if stats := cfg.Optimizer.Cost.Statistics; stats.Driver != "" {
		collector, err := statistics.Open(context.Background(), stats, logger)
		if err != nil {
			logger.Fatal("打开统计信息数据源失败", zap.Error(err))
		}
		collected, err := collector.Collect(context.Background())
		collector.Close()
		if err != nil {
			logger.Fatal("收集统计信息失败", zap.Error(err))
		}
		statistics.Merge(&cfg.Optimizer.Cost, collected)
		logger.Info("统计信息已加载", zap.Int("tables", len(collected)))
	}

	opt, err := optimizer.NewOptimizer(cfg.Optimizer,
		optimizer.WithLogger(logger),
		optimizer.WithHintStrategies(optimizer.DefaultHintStrategies))
	if err != nil {
		logger.Fatal("创建优化器失败", zap.Error(err))
	}

	empHints, err := parseHints(*scanHints)
	if err != nil {
		logger.Fatal("解析 hint 失败", zap.Error(err))
	}
	joinHintList, err := parseHints(*joinHints)
	if err != nil {
		logger.Fatal("解析 hint 失败", zap.Error(err))
	}

	emp := rel.Attach(rel.NewTableScan([]string{"SALES", "EMP"}, []rel.Column{
		{Name: "EMPNO", Type: rel.TypeInteger},
		{Name: "ENAME", Type: rel.TypeVarchar},
		{Name: "DEPTNO", Type: rel.TypeInteger},
		{Name: "SAL", Type: rel.TypeInteger},
	}), empHints...)
	dept := rel.NewTableScan([]string{"SALES", "DEPT"}, []rel.Column{
		{Name: "DEPTNO", Type: rel.TypeInteger},
		{Name: "NAME", Type: rel.TypeVarchar},
	})
	root := rel.Attach(rel.NewJoin(emp, dept, rel.JoinInner, rel.Eq(rel.Ref(2), rel.Ref(4))), joinHintList...)

	required := rel.NewTraitSet(rel.ConventionEnumerable)
	if *sorted {
		required = required.Replace(rel.NewCollation(2))
	}

	fmt.Println("逻辑计划:")
	fmt.Print(rel.Explain(root))

	plan, err := opt.Optimize(context.Background(), root, required)
	if err != nil {
		fmt.Fprintln(os.Stderr, "优化失败:", err)
		os.Exit(1)
	}
	fmt.Println("物理计划:")
	fmt.Print(rel.Explain(plan))
}

// parseHints 解析 NAME 或 NAME(opt1,opt2)，多个 hint 用 ; 分隔
func parseHints(s string) ([]rel.Hint, error) {
	var out []rel.Hint
	for _, item := range strings.Split(s, ";") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		name, rest, hasOptions := strings.Cut(item, "(")
		b := rel.NewHintBuilder(strings.TrimSpace(name))
		if hasOptions {
			rest, ok := strings.CutSuffix(rest, ")")
			if !ok {
				return nil, fmt.Errorf("hint %s: 缺少右括号", name)
			}
			for _, opt := range strings.Split(rest, ",") {
				if opt = strings.TrimSpace(opt); opt != "" {
					b.Option(opt)
				}
			}
		}
		h, err := b.Build()
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}
