// 版权所有 2024 MbInteligen. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
Package handlers 提供线索富化服务 HTTP API 的请求处理器实现。

# 概述

handlers 包实现了服务所有 HTTP 端点的请求处理逻辑，包括客户查询、
同步富化、线索录入、CRM/广告平台 Webhook 以及健康检查。所有 Handler
均遵循标准 net/http 接口，依赖通过构造函数注入。

# 核心类型

  - CustomerHandler   — 按 id 或 cpf/email/phone 查询客户视图
  - EnrichHandler     — 同步驱动富化管道
  - LeadsHandler      — 线索录入（异步）与单条线索的同步重放
  - C2SHandler        — CRM 驱动的同步富化
  - WebhookHandler    — CRM Webhook 接入与广告平台 Webhook 接入
  - ModulesHandler    — 深度富化子模块的缓存前置代理
  - HealthHandler     — 服务健康检查（/health, /healthz, /ready）
  - Response          — 统一 JSON 响应结构（success + data + error + timestamp）
  - ErrorInfo         — 结构化错误信息，含 kind、message、retryable 标记
  - ResponseWriter    — 包装 http.ResponseWriter 以捕获状态码
  - HealthCheck       — 可插拔健康检查接口（Database、Provider 等）

# 主要能力

  - 统一响应格式：WriteSuccess / WriteError / WriteJSON 辅助函数
  - 请求验证：DecodeJSONBody（严格模式；超过 5 MiB 的请求体由 BodyLimit 中间件截断，映射为 413）、ValidateContentType
  - ErrorKind → HTTP 状态码自动映射（4xx/5xx）
  - 异步分发：LeadsHandler/WebhookHandler 通过 GoroutinePool 后台运行富化
  - 可扩展健康检查：RegisterCheck 注册自定义 HealthCheck 实现
*/
package handlers
