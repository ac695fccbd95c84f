/*
 * Copyright 2025 The RuleGo Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

/*
Package rowcache 为只能向前遍历、行数可能未知的表提供窗口化的行缓存。

典型场景是表格界面的滚动：界面按页请求行，而底层数据源（文件、数据库游标、
Redis 列表）只能从头到尾读取一次。

# 核心特性

• 环形缓冲区 - 最近读取的 CacheSize 行按绝对行号寻址，命中时不读取数据源
• 预读 - 每次向前读取时额外读取 LookAhead 行
• 向后跳转 - 请求的行已被淘汰时，重新打开迭代器从头读取
• 行数跟踪 - 行数在读到表尾或外部确认之前是暂定的下界
• 变换 - 排序、列过滤和行过滤生成新的独立窗口，见 transform 包

# 入门示例

	src, err := source.OpenJSONL("orders.jsonl")
	if err != nil {
		panic(err)
	}

	w, err := rowcache.New(src,
		rowcache.WithCacheSize(500),
		rowcache.WithLookAhead(50))
	if err != nil {
		panic(err)
	}
	defer w.Close()

	// 第一页
	rows, err := w.GetRows(ctx, 0, 100)

	// 行数未知时在后台计数
	job := rowcount.CountInBackground(ctx, w.Source(), w.SetRowCount)
	defer job.Cancel()

# 排序

	exec, err := transform.NewBuilder(w).
		Sort(types.SortSpec{Columns: []types.SortColumn{{Name: "price", Descending: true}}}).
		Build()
	sorted, err := exec.Apply(ctx, func(fraction float64, msg string) {
		fmt.Printf("%.0f%% %s\n", fraction*100, msg)
	})

# 错误

GetRows 返回的错误可以用 errors.Is 匹配 types.ErrOutOfRange、
types.ErrCancelled 和 types.ErrClosed；数据源故障以 *types.SourceError 返回。
*/
package rowcache
