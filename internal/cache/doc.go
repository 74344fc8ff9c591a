// 版权所有 2024 MbInteligen. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 cache 提供进程本地、分片 LRU、校验和验证的缓存实现。

# 概述

本包不依赖任何外部缓存服务：每个 Cache 按 key 的 FNV-32 哈希分成
16 个互斥锁保护的分片，每个分片维护一条 LRU 双向链表用于容量驱逐。
每次写入记录一份 SHA-256 校验和，读取时校验失败即视为未命中并驱逐
该条目，防止损坏的字节进入调用方。Manager 汇总四个按用途命名的
Cache 实例，并用一个后台 ticker 周期性清理过期条目。

# 核心类型

  - Cache：单个分片、带 TTL 与校验和的键值缓存，Put/Get/Delete/Len/Sweep。
  - Manager：持有 ProviderResponse、ContactToParty、RecentLead、
    RecentIdentifier 四个 Cache 实例，并驱动后台清理循环。

# 主要能力

  - 分片并发：16 个分片降低单锁竞争。
  - LRU 驱逐：超出容量时驱逐最久未使用的条目。
  - 校验和验证：Get 对比存储时的 SHA-256，不一致则视为未命中并清除。
  - 周期清理：Manager 每 30 秒扫描一次所有缓存的过期条目。

本包是进程本地设计；不提供分布式/共享缓存后端。
*/
package cache
